package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MountOptions holds high-level settings for mounting.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug        bool    // fuse debug logs
	FsName       string  // mount's FsName
	Name         string  // mount's Name
	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
}

// Validate implements validation.Validatable
func (m MountOptions) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.FsName, validation.Required),
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.AttrTimeout, validation.Min(0.0)),
		validation.Field(&m.EntryTimeout, validation.Min(0.0)),
	)
}
