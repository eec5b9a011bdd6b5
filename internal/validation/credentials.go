package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var validCharsUsername = regexp.MustCompile(`^[A-Za-z\d_.-]+$`)
var validCharsPassword = regexp.MustCompile(`^[A-Za-z\d@$!%*?&#]+$`)

// CheckNewUser validates the fields of an account before it is created
func CheckNewUser(username, name, password string) error {
	if vErr := validateUsername(username); vErr != nil {
		return fmt.Errorf("invalid username %s (%w)", username, vErr)
	}
	if vErr := validateName(name); vErr != nil {
		return fmt.Errorf("invalid name (%w)", vErr)
	}
	if vErr := validatePassword(password); vErr != nil {
		return fmt.Errorf("invalid password (%w)", vErr)
	}
	return nil
}

// CheckCredentials validates credentials a client is about to save to its config
func CheckCredentials(username, password string) error {
	if vErr := validateUsername(username); vErr != nil {
		return fmt.Errorf("invalid username %s (%w)", username, vErr)
	}
	if vErr := validatePassword(password); vErr != nil {
		return fmt.Errorf("invalid password (%w)", vErr)
	}
	return nil
}

// validateUsername returns user-friendly errors
func validateUsername(username string) error {
	if len(username) == 0 {
		return errors.New("empty username")
	}
	if len(username) > 24 {
		return errors.New("username too long. Must be 24 characters or less")
	}
	if valid := validCharsUsername.MatchString(username); !valid {
		return errors.New("invalid character(s) detected. only letters, numbers, '_', '.' and '-' allowed")
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("empty name")
	}
	if len(name) > 64 {
		return errors.New("name too long. Must be 64 characters or less")
	}
	return nil
}

// validatePassword returns user-friendly errors
func validatePassword(password string) error {
	if len(password) == 0 {
		return errors.New("empty password. please ensure it's in your config file")
	}
	if len(password) > 64 {
		return errors.New("password too long. Must be 64 characters or less")
	}
	if valid := validCharsPassword.MatchString(password); !valid {
		return errors.New("invalid character(s) detected. only normal characters, numbers, and some symbols allowed")
	}
	return nil
}
