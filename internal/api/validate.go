package api

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minUsername   = 3
	maxUsername   = 20
	minPassword   = 8
	maxContent    = 5000
	maxGroupName  = 50
	maxBio        = 200
	passwordMarks = "@$!%*?&#"
)

func validation(code, message string) *Error {
	return badRequest(code, message)
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsername || n > maxUsername {
		return validation("VALIDATION_FAILED", "Username must be between 3 and 20 characters")
	}
	for _, r := range username {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_') {
			return validation("INVALID_FORMAT", "Username may only contain letters, digits, '.' and '_'")
		}
	}
	first, _ := utf8.DecodeRuneInString(username)
	if !unicode.IsLetter(first) {
		return validation("INVALID_FORMAT", "Username must start with a letter")
	}
	last, _ := utf8.DecodeLastRuneInString(username)
	if !unicode.IsLetter(last) && !unicode.IsDigit(last) {
		return validation("INVALID_FORMAT", "Username must end with a letter or digit")
	}
	if strings.Count(username, ".") > 1 {
		return validation("INVALID_FORMAT", "Username may contain at most one '.'")
	}
	if strings.Contains(username, "__") {
		return validation("INVALID_FORMAT", "Username may not contain consecutive underscores")
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return validation("INVALID_FORMAT", "Email address is not valid")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPassword {
		return validation("TOO_SHORT", "Password must be at least 8 characters")
	}
	var lower, upper, digit, mark bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordMarks, r):
			mark = true
		}
	}
	if !lower || !upper || !digit || !mark {
		return validation("WEAK_PASSWORD",
			"Password must contain a lowercase letter, an uppercase letter, a digit and one of "+passwordMarks)
	}
	return nil
}

func validateContent(content string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(content))
	if n == 0 {
		return validation("REQUIRED_FIELD", "Message content is required")
	}
	if utf8.RuneCountInString(content) > maxContent {
		return validation("TOO_LONG", "Message content must be at most 5000 characters")
	}
	return nil
}

func validateGroupName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return validation("REQUIRED_FIELD", "Group name is required")
	}
	if n > maxGroupName {
		return validation("TOO_LONG", "Group name must be at most 50 characters")
	}
	return nil
}

func validateBio(bio string) error {
	if utf8.RuneCountInString(bio) > maxBio {
		return validation("TOO_LONG", "Bio must be at most 200 characters")
	}
	return nil
}
