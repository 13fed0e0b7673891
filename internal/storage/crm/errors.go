package crm

import "fmt"

// TransportError все попытки вызова исчерпаны либо статус неповторяемый.
type TransportError struct {
	Method      string
	Status      int
	Description string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("crm: %s failed with status %d: %s", e.Method, e.Status, e.Description)
}

// FieldResolutionError обязательное логическое поле не удалось сопоставить
// с реальным кодом и запасного варианта нет.
type FieldResolutionError struct {
	Entity  string
	Logical string
}

func (e *FieldResolutionError) Error() string {
	return fmt.Sprintf("crm: cannot resolve field %q for entity %q", e.Logical, e.Entity)
}

// EnumResolutionError для записи enum-поля не нашлось ID и кэш пуст.
// Вызывающий пропускает это поле и продолжает.
type EnumResolutionError struct {
	Field string
	Label string
}

func (e *EnumResolutionError) Error() string {
	return fmt.Sprintf("crm: no enum id for label %q in field %q", e.Label, e.Field)
}
