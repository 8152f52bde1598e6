package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role values for User.Role.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Username     string `gorm:"index;size:100" json:"username"`
	PasswordHash string `gorm:"not null;size:255" json:"-"`
	FirstName    string `gorm:"size:100" json:"first_name,omitempty"`
	LastName     string `gorm:"size:100" json:"last_name,omitempty"`
	Bio          string `json:"bio,omitempty"`
	AvatarURL    string `gorm:"size:500" json:"avatar_url,omitempty"`
	Role         string `gorm:"not null;size:50;default:'user'" json:"role"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`

	// Email verification
	EmailVerified            bool       `gorm:"not null;default:false" json:"email_verified"`
	EmailVerificationToken   *string    `gorm:"index;size:255" json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`
	LastEmailChange          *time.Time `json:"last_email_change,omitempty"`

	// Password reset token lifecycle. Only the sha256 hash of the token
	// is ever stored; the plaintext goes out-of-band to the requester.
	ResetPasswordToken       *string    `gorm:"index;size:255" json:"-"`
	ResetPasswordExpires     *time.Time `json:"-"`
	ResetPasswordAttempts    int        `gorm:"not null;default:0" json:"-"`
	LastResetPasswordAttempt *time.Time `json:"-"`
	LastPasswordChange       *time.Time `json:"last_password_change,omitempty"`

	LastLogin *time.Time     `json:"last_login,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	GalleryItems  []GalleryItem  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Notifications []Notification `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// GalleryItem is one uploaded artwork in a user's gallery.
type GalleryItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	Title       string `gorm:"size:255;index" json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Artist      string `gorm:"size:255;index" json:"artist,omitempty"`
	Year        *int   `json:"year,omitempty"`
	Tags        string `gorm:"size:500;index" json:"tags,omitempty"`

	// Storage fields; ImagePath is the backend key, never exposed raw.
	ImagePath        string `gorm:"not null;size:500" json:"image_path"`
	OriginalFilename string `gorm:"size:255" json:"original_filename,omitempty"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `gorm:"size:100" json:"mime_type,omitempty"`
	Hash             string `gorm:"size:64" json:"-"`

	IsValid   bool           `gorm:"not null;default:false;index" json:"is_valid"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Notification types. "upload" is reserved for locally synthesized
// upload-progress entries and never persisted here.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// Notification is a durable center notification owned by a user.
type Notification struct {
	ID        uint                                  `gorm:"primaryKey" json:"id"`
	UserID    uint                                  `gorm:"not null;index" json:"user_id"`
	Title     string                                `gorm:"not null;size:255" json:"title"`
	Message   string                                `gorm:"not null" json:"message"`
	Type      string                                `gorm:"size:50;default:'info';index" json:"type"`
	IsRead    bool                                  `gorm:"not null;default:false;index" json:"is_read"`
	Metadata  datatypes.JSONType[map[string]string] `json:"metadata"`
	CreatedAt time.Time                             `gorm:"index" json:"created_at"`
	UpdatedAt time.Time                             `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
