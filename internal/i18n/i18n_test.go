package i18n

import (
	"testing"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := New("vi", nil)
	if err != nil {
		t.Fatalf("New(vi): %v", err)
	}
	return tr
}

func TestViewingQuestionVietnamese(t *testing.T) {
	tr := newTranslator(t)

	got := tr.Td("vi", "ViewingQuestion", map[string]any{"Ordinal": 7})
	if got != "Đang xem câu 7" {
		t.Errorf("Td(ViewingQuestion) = %q, want 'Đang xem câu 7'", got)
	}
}

func TestViewingQuestionEnglish(t *testing.T) {
	tr := newTranslator(t)

	got := tr.Td("en", "ViewingQuestion", map[string]any{"Ordinal": 3})
	if got != "Viewing question 3" {
		t.Errorf("Td(ViewingQuestion) = %q, want 'Viewing question 3'", got)
	}
}

func TestDefaultLanguageFallback(t *testing.T) {
	tr := newTranslator(t)

	got := tr.Td("", "NoQuestionFocused", nil)
	if got != "Chưa xem câu nào" {
		t.Errorf("Td(NoQuestionFocused) = %q, want Vietnamese default", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	tr := newTranslator(t)

	got := tr.Tp("en", "QuestionsAnswered", 1, map[string]any{"Answered": 1, "Total": 4})
	if got != "1 of 4 question answered" {
		t.Errorf("Tp(QuestionsAnswered, 1) = %q", got)
	}

	got = tr.Tp("en", "QuestionsAnswered", 3, map[string]any{"Answered": 3, "Total": 4})
	if got != "3 of 4 questions answered" {
		t.Errorf("Tp(QuestionsAnswered, 3) = %q", got)
	}
}

func TestMissingTranslationReturnsID(t *testing.T) {
	tr := newTranslator(t)

	if got := tr.Td("en", "NoSuchMessage", nil); got != "NoSuchMessage" {
		t.Errorf("Td(NoSuchMessage) = %q, want message ID", got)
	}
}

func TestInvalidDefaultLanguage(t *testing.T) {
	if _, err := New("not a tag!", nil); err == nil {
		t.Error("expected error for invalid language tag")
	}
}
