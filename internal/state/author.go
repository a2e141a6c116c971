package state

import "os"

// Author identifies who history commits are attributed to.
type Author struct {
	Name      string
	Email     string
	IsDefault bool
}

// DetectAuthor detects the commit author from environment variables.
// It implements a three-tier fallback system:
// 1. ISO_UPDATER_GIT_NAME, ISO_UPDATER_GIT_EMAIL
// 2. Standard git environment variables (GIT_AUTHOR_NAME, GIT_AUTHOR_EMAIL)
// 3. Placeholder values (iso-updater, iso-updater@localhost)
//
// Global git config is never read.
func DetectAuthor() Author {
	if name := os.Getenv("ISO_UPDATER_GIT_NAME"); name != "" {
		email := os.Getenv("ISO_UPDATER_GIT_EMAIL")
		if email == "" {
			email = "iso-updater@localhost"
		}
		return Author{Name: name, Email: email}
	}

	if name := os.Getenv("GIT_AUTHOR_NAME"); name != "" {
		email := os.Getenv("GIT_AUTHOR_EMAIL")
		if email == "" {
			email = "git@localhost"
		}
		return Author{Name: name, Email: email}
	}

	return Author{
		Name:      "iso-updater",
		Email:     "iso-updater@localhost",
		IsDefault: true,
	}
}
