package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Roles stored in users.role
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User is a platform account. Role is the sole authority for dashboard access.
type User struct {
	BaseModel
	Email        string    `json:"email" gorm:"unique;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name"`
	Role         string    `json:"role" gorm:"not null;default:user;index"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsAdmin reports whether the user carries the given admin role
func (u *User) IsAdmin(adminRole string) bool {
	return u.Role == adminRole
}

// Department groups subjects, e.g. "Computer Engineering"
type Department struct {
	BaseModel
	Name string `json:"name" gorm:"unique;not null"`
	Code string `json:"code" gorm:"unique;not null"`
}

// Semester is an academic term number within a programme
type Semester struct {
	BaseModel
	Name   string `json:"name" gorm:"not null"`
	Number int    `json:"number" gorm:"unique;not null"`
}

// Subject belongs to one department and is taught in one semester
type Subject struct {
	BaseModel
	Name         string `json:"name" gorm:"not null"`
	Code         string `json:"code" gorm:"unique;not null"`
	DepartmentID string `json:"department_id" gorm:"not null;index"`
	SemesterID   string `json:"semester_id" gorm:"not null;index"`

	// Relationships
	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID;constraint:OnDelete:CASCADE"`
	Semester   *Semester   `json:"semester,omitempty" gorm:"foreignKey:SemesterID;constraint:OnDelete:CASCADE"`
}

// Note is an uploaded study document. Unapproved notes are hidden from students.
type Note struct {
	BaseModel
	Title        string    `json:"title" gorm:"not null"`
	Description  string    `json:"description" gorm:"type:text"`
	FileURL      string    `json:"file_url" gorm:"not null"`
	SubjectID    string    `json:"subject_id" gorm:"not null;index"`
	UploadedByID *string   `json:"uploaded_by_id" gorm:"index"`
	Downloads    int       `json:"downloads" gorm:"not null;default:0"`
	Approved     bool      `json:"approved" gorm:"not null;default:false"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Subject    *Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE"`
	UploadedBy *User    `json:"uploaded_by,omitempty" gorm:"foreignKey:UploadedByID;references:ID;constraint:OnDelete:SET NULL"`
}

// AuditEntry records one admin mutation
type AuditEntry struct {
	BaseModel
	Actor    string `json:"actor" gorm:"not null"`
	Action   string `json:"action" gorm:"not null"` // create, update, delete
	Entity   string `json:"entity" gorm:"not null;index"`
	EntityID string `json:"entity_id"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{}, &Department{}, &Semester{}, &Subject{}, &Note{}, &AuditEntry{},
	)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
