package server

import (
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/staffchat/pkg/directory"
)

// UserYAML represents a user in YAML export.
type UserYAML struct {
	Username   string `yaml:"username"`
	FullName   string `yaml:"full_name,omitempty"`
	Department string `yaml:"department,omitempty"`
	Position   string `yaml:"position,omitempty"`
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// ExportUsersYAML exports all registered users as YAML. Password hashes are
// never included.
func ExportUsersYAML(dir *directory.Directory) ([]byte, error) {
	export := UsersExport{}
	for _, u := range dir.ListAll() {
		export.Users = append(export.Users, UserYAML{
			Username:   u.Username,
			FullName:   u.FullName,
			Department: u.Department,
			Position:   u.Position,
		})
	}
	return yaml.Marshal(&export)
}
