package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxNameLength     = 20
	maxCategoryLength = 32
	maxCategories     = 12
	maxAnswerLength   = 60
	maxRoundsPerGame  = 10
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			_, err := validateName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("sessioncode", func(fl validator.FieldLevel) bool {
			return normalizeCode(fl.Field().String()) != ""
		})
	})
}

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("name is required")
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("name must be %d characters or fewer", maxNameLength)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("name contains unsupported characters")
	}
	return trimmed, nil
}

func validateCategories(categories []string) ([]string, error) {
	if len(categories) == 0 {
		return nil, errors.New("at least one category is required")
	}
	if len(categories) > maxCategories {
		return nil, fmt.Errorf("at most %d categories are allowed", maxCategories)
	}
	cleaned := make([]string, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		trimmed := strings.TrimSpace(category)
		if trimmed == "" {
			return nil, errors.New("category labels cannot be blank")
		}
		if len(trimmed) > maxCategoryLength {
			return nil, fmt.Errorf("category must be %d characters or fewer", maxCategoryLength)
		}
		if !isSafeText(trimmed) {
			return nil, errors.New("category contains unsupported characters")
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate category %q", trimmed)
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned, nil
}

func validateRoundDuration(seconds int) error {
	if seconds <= 0 {
		return errors.New("round duration must be positive")
	}
	return nil
}

func validateTotalRounds(rounds int) error {
	if rounds <= 0 {
		return errors.New("number of rounds must be positive")
	}
	if rounds > maxRoundsPerGame {
		return fmt.Errorf("at most %d rounds are allowed", maxRoundsPerGame)
	}
	return nil
}

// normalizeCode uppercases a join code and rejects anything that is
// not six code-alphabet characters. Returns "" when invalid.
func normalizeCode(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if len(trimmed) != sessionCodeLength {
		return ""
	}
	for _, r := range trimmed {
		if !strings.ContainsRune(codeAlphabet, r) {
			return ""
		}
	}
	return trimmed
}

func isSafeText(text string) bool {
	for _, r := range text {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
