// Package validation проверяет идентификаторы записей, общие для клиента и сервера.
package validation

import (
	"fmt"
	"regexp"
)

// EntityTypePattern определяет допустимый формат типа сущности
// Строчные латинские буквы, цифры, '_' и '-', первым символом буква
var EntityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// RecordIDPattern определяет допустимый формат ID записи.
// Слэш запрещен: ID передается одним сегментом пути /records/{type}/{id}
var RecordIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

const (
	// MaxEntityTypeLen максимальная длина типа сущности
	MaxEntityTypeLen = 64
	// MaxRecordIDLen максимальная длина ID записи
	MaxRecordIDLen = 128
)

// ValidateEntityType проверяет, что тип сущности соответствует требованиям
func ValidateEntityType(entityType string) error {
	if entityType == "" {
		return fmt.Errorf("entity type cannot be empty")
	}

	if len(entityType) > MaxEntityTypeLen {
		return fmt.Errorf("entity type must not exceed %d characters", MaxEntityTypeLen)
	}

	if !EntityTypePattern.MatchString(entityType) {
		return fmt.Errorf("entity type can only contain lowercase letters, numbers, '_' and '-', starting with a letter")
	}

	return nil
}

// ValidateRecordID проверяет ID записи
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	if len(id) > MaxRecordIDLen {
		return fmt.Errorf("record id must not exceed %d characters", MaxRecordIDLen)
	}

	if !RecordIDPattern.MatchString(id) {
		return fmt.Errorf("record id can only contain letters, numbers, '.', '_', ':' and '-'")
	}

	return nil
}

// ValidateKey проверяет пару тип сущности + ID
func ValidateKey(entityType, id string) error {
	if err := ValidateEntityType(entityType); err != nil {
		return err
	}
	return ValidateRecordID(id)
}
