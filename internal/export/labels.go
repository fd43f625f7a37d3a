package export

import "github.com/eris-support/triage-service/internal/domain"

var sentimentLabels = map[domain.Sentiment]string{
	domain.SentimentPositive: "Позитив",
	domain.SentimentNeutral:  "Нейтраль",
	domain.SentimentNegative: "Негатив",
}

var categoryLabels = map[domain.Category]string{
	domain.CategoryMalfunction:   "Неисправность",
	domain.CategoryCalibration:   "Калибровка",
	domain.CategoryDocumentation: "Документация",
	domain.CategoryOther:         "Прочее",
}

var statusLabels = map[domain.TicketStatus]string{
	domain.TicketStatusOpen:          "Новая",
	domain.TicketStatusInProgress:    "В работе",
	domain.TicketStatusNeedsOperator: "Ждёт оператора",
	domain.TicketStatusClosed:        "Закрыта",
}

// SentimentLabel returns the display label, or the raw value when unknown.
func SentimentLabel(s domain.Sentiment) string {
	if l, ok := sentimentLabels[s]; ok {
		return l
	}
	return string(s)
}

// CategoryLabel returns the display label, or the raw value when unknown.
func CategoryLabel(c domain.Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// StatusLabel returns the display label, or the raw value when unknown.
func StatusLabel(s domain.TicketStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}
