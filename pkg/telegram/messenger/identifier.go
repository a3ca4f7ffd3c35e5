package messenger

import "strings"

// IsPhone сообщает, похож ли идентификатор на номер телефона:
// начинается с "+" или состоит только из цифр.
func IsPhone(identifier string) bool {
	id := strings.TrimSpace(identifier)
	digits := strings.TrimPrefix(id, "+")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizePhone приводит номер к виду +79990000000.
func NormalizePhone(identifier string) string {
	return "+" + strings.TrimPrefix(strings.TrimSpace(identifier), "+")
}

// Username убирает "@" и ссылку t.me из идентификатора.
func Username(identifier string) string {
	id := strings.TrimSpace(identifier)
	id = strings.TrimPrefix(id, "https://t.me/")
	id = strings.TrimPrefix(id, "t.me/")
	return strings.TrimPrefix(id, "@")
}
