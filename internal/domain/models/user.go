package models

import "time"

// Role — роль пользователя в системе
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User представляет пользователя
type User struct {
	ID               int64
	Username         string
	PassHash         []byte
	Role             Role
	Phone            string
	Address          string
	RegistrationDate time.Time
	IsApproved       bool // Регистрация действует только после одобрения администратором
}
