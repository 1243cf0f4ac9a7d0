package validator

import (
	"fmt"
	"strings"
)

const (
	minSnowflakeLength = 15
	maxSnowflakeLength = 21
	maxSearchQueryLen  = 100
	asciiControlStart  = 32
	asciiDelete        = 127

	errSnowflakeEmptyFmt        = "%s cannot be empty"
	errSnowflakeLengthFmt       = "%s must be between %d and %d digits"
	errSnowflakeDigitsFmt       = "%s must contain only digits"
	errSearchQueryEmptyFmt      = "search query cannot be empty"
	errSearchQueryMaxLengthFmt  = "search query must not exceed %d characters"
	errSearchQueryControlFmt    = "search query cannot contain control characters"
	defaultSnowflakeDisplayName = "id"
)

// Snowflake validates a platform identifier: a decimal string of 15-21 digits.
func Snowflake(id string) error {
	return NamedSnowflake(defaultSnowflakeDisplayName, id)
}

func NamedSnowflake(name, id string) error {
	if id == "" {
		return fmt.Errorf(errSnowflakeEmptyFmt, name)
	}

	if len(id) < minSnowflakeLength || len(id) > maxSnowflakeLength {
		return fmt.Errorf(errSnowflakeLengthFmt, name, minSnowflakeLength, maxSnowflakeLength)
	}

	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf(errSnowflakeDigitsFmt, name)
		}
	}

	return nil
}

func SearchQuery(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf(errSearchQueryEmptyFmt)
	}

	if len(query) > maxSearchQueryLen {
		return fmt.Errorf(errSearchQueryMaxLengthFmt, maxSearchQueryLen)
	}

	for _, r := range query {
		if r < asciiControlStart || r == asciiDelete {
			return fmt.Errorf(errSearchQueryControlFmt)
		}
	}

	return nil
}
