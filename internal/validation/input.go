package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength       = 3
	MaxUsernameLength       = 30
	MinJobTitleLength       = 3
	MaxJobTitleLength       = 200
	MinJobDescriptionLength = 10
	MaxJobDescriptionLength = 5000
	MinProposalLength       = 10
	MaxProposalLength       = 2000
	MinReasonLength         = 10
	MaxReasonLength         = 2000
	MaxReviewLength         = 2000
	MaxSkillLength          = 50
	MaxSkillsCount          = 20
	MaxTagsCount            = 10
	MaxPayment              = 100000000.0 // 100 миллионов
	MinMessageLength        = 1
	MaxMessageLength        = 5000
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart, domainPart := parts[0], parts[1]
	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	localRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !localRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateJobTitle проверяет заголовок задания.
func ValidateJobTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок задания обязателен")
	}
	return ValidateLength("заголовок задания", title, MinJobTitleLength, MaxJobTitleLength)
}

// ValidateJobDescription проверяет описание задания.
func ValidateJobDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("описание задания обязательно")
	}
	return ValidateLength("описание задания", description, MinJobDescriptionLength, MaxJobDescriptionLength)
}

// ValidateProposal проверяет сопроводительный текст ставки.
func ValidateProposal(proposal string) error {
	proposal = strings.TrimSpace(proposal)
	if proposal == "" {
		return fmt.Errorf("сопроводительный текст обязателен")
	}
	return ValidateLength("сопроводительный текст", proposal, MinProposalLength, MaxProposalLength)
}

// ValidateDisputeReason проверяет причину спора.
func ValidateDisputeReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("причина спора обязательна")
	}
	return ValidateLength("причина спора", reason, MinReasonLength, MaxReasonLength)
}

// ValidateSkills проверяет массив навыков: без пустых значений и дубликатов.
func ValidateSkills(skills []string) error {
	if len(skills) > MaxSkillsCount {
		return fmt.Errorf("количество навыков не может превышать %d", MaxSkillsCount)
	}

	seen := make(map[string]bool)
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			return fmt.Errorf("навык не может быть пустым")
		}
		if utf8.RuneCountInString(skill) > MaxSkillLength {
			return fmt.Errorf("навык не может быть длиннее %d символов", MaxSkillLength)
		}
		skillLower := strings.ToLower(skill)
		if seen[skillLower] {
			return fmt.Errorf("навык '%s' указан дважды", skill)
		}
		seen[skillLower] = true
	}
	return nil
}

// ValidatePayment проверяет сумму оплаты задания.
func ValidatePayment(payment float64) error {
	if payment <= 0 {
		return fmt.Errorf("оплата должна быть больше нуля")
	}
	if payment > MaxPayment {
		return fmt.Errorf("оплата не может превышать %.0f", MaxPayment)
	}
	return nil
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}
	return ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength)
}
