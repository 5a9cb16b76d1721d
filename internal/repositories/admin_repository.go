package repositories

import "pear/internal/models"

// AdminRepository defines the interface for admin account access.
type AdminRepository interface {
	Create(admin *models.Admin) error
	GetByUsername(username string) (*models.Admin, error)
}
