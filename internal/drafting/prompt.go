package drafting

import (
	"fmt"
	"strings"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

// FieldType is the JSON type a draft field must carry.
type FieldType string

const (
	TypeString FieldType = "STRING"
	TypeNumber FieldType = "NUMBER"
)

// Field describes one required key of the generated reply. Name is the
// camelCase key; Alias is the accepted snake_case spelling.
type Field struct {
	Name  string
	Alias string
	Type  FieldType
}

// Schema is the fixed reply shape requested from the backend.
type Schema struct {
	Fields []Field
}

// Names returns the canonical field names in order.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}

const (
	fieldTitle       = "suggestedTitle"
	fieldCategory    = "suggestedCategory"
	fieldDescription = "refinedDescription"
	fieldBudgetMin   = "estimatedBudgetMin"
	fieldBudgetMax   = "estimatedBudgetMax"
)

// DraftSchema is the shape every analyze reply is parsed against.
var DraftSchema = Schema{Fields: []Field{
	{Name: fieldTitle, Alias: "suggested_title", Type: TypeString},
	{Name: fieldCategory, Alias: "suggested_category", Type: TypeString},
	{Name: fieldDescription, Alias: "refined_description", Type: TypeString},
	{Name: fieldBudgetMin, Alias: "estimated_budget_min", Type: TypeNumber},
	{Name: fieldBudgetMax, Alias: "estimated_budget_max", Type: TypeNumber},
}}

// DefaultCategories seeds the category hint when none are configured.
var DefaultCategories = []string{"Ремонт", "Сантехника", "Уборка", "Репетиторы", "Красота", "Перевозки", "IT"}

var languageInstruction = map[domain.Locale]string{
	domain.LocaleRU: "Проанализируй запрос пользователя и верни структурированные данные на РУССКОМ языке.",
	domain.LocaleUZ: "Vazifani o'zbek tilida tahlil qiling va javoblarni O'ZBEK tilida qaytaring.",
}

var describeLanguage = map[domain.Locale]string{
	domain.LocaleRU: "Ответь на русском языке.",
	domain.LocaleUZ: "Javobni o'zbek tilida yozing.",
}

// ParseLocale accepts "ru" or "uz" in any case; blank defaults to ru.
func ParseLocale(s string) (domain.Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(domain.LocaleRU):
		return domain.LocaleRU, nil
	case string(domain.LocaleUZ):
		return domain.LocaleUZ, nil
	}
	return "", fmt.Errorf("%w %q: want ru or uz", ErrLocale, s)
}

func analyzeInstruction(input string, locale domain.Locale, categories []string) string {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	var b strings.Builder
	b.WriteString("Ты помощник сервиса по поиску специалистов.\n")
	b.WriteString(languageInstruction[locale])
	b.WriteString("\n")
	fmt.Fprintf(&b, "Пользователь хочет: %q.\n\n", input)
	b.WriteString("Предложи:\n")
	b.WriteString("1. Короткий и понятный заголовок задачи.\n")
	fmt.Fprintf(&b, "2. Категорию услуги (например: %s).\n", strings.Join(categories, ", "))
	b.WriteString("3. Улучшенное, профессиональное описание задачи.\n")
	b.WriteString("4. Оценочный диапазон бюджета (числа).\n\n")
	fmt.Fprintf(&b, "Ответь строго JSON-объектом с полями: %s.\n", strings.Join(DraftSchema.Names(), ", "))
	return b.String()
}

func describeInstruction(title, category string, locale domain.Locale) string {
	var b strings.Builder
	b.WriteString("Act as a helpful assistant for a service marketplace.\n")
	fmt.Fprintf(&b, "A user wants to create a task with the title: %q in the category: %q.\n\n", title, category)
	b.WriteString("Generate a professional, detailed description for this task that a specialist would understand.\n")
	b.WriteString("Include details they might need to know (tools needed, specific conditions).\n")
	b.WriteString("Keep it concise but informative (max 150 words).\n")
	b.WriteString("Return ONLY the description text, no markdown formatting or headers.\n")
	b.WriteString(describeLanguage[locale])
	b.WriteString("\n")
	return b.String()
}
