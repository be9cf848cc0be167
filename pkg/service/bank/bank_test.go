package bank_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/service/bank"
)

func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, data, 0600)).Required()
	return path
}

func TestLoadQuestions(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a quiz bank", func(t *testing.T) {
		path := writeTestFile(t, "questions.json", []byte(`[
			{
				"question": "What is 2 + 2?",
				"options": {"a": "three", "b": "four", "c": "five"},
				"answer": "b"
			},
			{
				"question": "What color is the sky?",
				"options": {"a": "blue", "b": "green"},
				"answer": "a"
			}
		]`))

		questions, err := bank.LoadQuestions(ctx, path)
		gt.NoError(t, err).Required()
		gt.Array(t, questions).Length(2)

		q := questions[0]
		gt.Value(t, q.Text).Equal("What is 2 + 2?")
		gt.Array(t, q.Options).Length(3)
		gt.Value(t, q.Options[0].Label).Equal(model.Label("a"))
		gt.Value(t, q.Options[1].Label).Equal(model.Label("b"))
		gt.Value(t, q.Options[1].Text).Equal("four")
		gt.Value(t, q.Answer).Equal(model.Label("b"))
	})

	t.Run("normalizes uppercase labels and answers", func(t *testing.T) {
		path := writeTestFile(t, "questions.json", []byte(`[
			{
				"question": "Pick one",
				"options": {"A": "first", "B": "second"},
				"answer": "B"
			}
		]`))

		questions, err := bank.LoadQuestions(ctx, path)
		gt.NoError(t, err).Required()
		gt.Array(t, questions).Length(1)
		gt.Value(t, questions[0].Options[0].Label).Equal(model.Label("a"))
		gt.Value(t, questions[0].Answer).Equal(model.Label("b"))
	})

	t.Run("presents options in sorted label order", func(t *testing.T) {
		path := writeTestFile(t, "questions.json", []byte(`[
			{
				"question": "Ordered?",
				"options": {"d": "fourth", "b": "second", "a": "first", "c": "third"},
				"answer": "a"
			}
		]`))

		questions, err := bank.LoadQuestions(ctx, path)
		gt.NoError(t, err).Required()

		labels := questions[0].Labels()
		gt.Value(t, labels).Equal([]model.Label{"a", "b", "c", "d"})
	})

	t.Run("rejects answer outside the option labels", func(t *testing.T) {
		path := writeTestFile(t, "questions.json", []byte(`[
			{
				"question": "Broken?",
				"options": {"a": "yes", "b": "no"},
				"answer": "z"
			}
		]`))

		_, err := bank.LoadQuestions(ctx, path)
		gt.Value(t, err).NotNil()
	})

	t.Run("rejects single-option questions", func(t *testing.T) {
		path := writeTestFile(t, "questions.json", []byte(`[
			{
				"question": "Only one?",
				"options": {"a": "yes"},
				"answer": "a"
			}
		]`))

		_, err := bank.LoadQuestions(ctx, path)
		gt.Value(t, err).NotNil()
	})

	t.Run("rejects an empty bank", func(t *testing.T) {
		path := writeTestFile(t, "questions.json", []byte(`[]`))

		_, err := bank.LoadQuestions(ctx, path)
		gt.Value(t, err).NotNil()
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		path := writeTestFile(t, "questions.json", []byte(`{"not": "an array"`))

		_, err := bank.LoadQuestions(ctx, path)
		gt.Value(t, err).NotNil()
	})

	t.Run("rejects a missing file", func(t *testing.T) {
		_, err := bank.LoadQuestions(ctx, filepath.Join(t.TempDir(), "absent.json"))
		gt.Value(t, err).NotNil()
	})

	t.Run("rejects a gs URL without an object path", func(t *testing.T) {
		_, err := bank.LoadQuestions(ctx, "gs://bucket-only")
		gt.Value(t, err).NotNil()
	})

	t.Run("accepts a UTF-8 BOM", func(t *testing.T) {
		body := []byte(`[
			{
				"question": "Signed?",
				"options": {"a": "yes", "b": "no"},
				"answer": "a"
			}
		]`)
		data := append([]byte{0xEF, 0xBB, 0xBF}, body...)
		path := writeTestFile(t, "questions.json", data)

		questions, err := bank.LoadQuestions(ctx, path)
		gt.NoError(t, err).Required()
		gt.Array(t, questions).Length(1)
		gt.Value(t, questions[0].Text).Equal("Signed?")
	})

	t.Run("falls back to Windows-1252", func(t *testing.T) {
		// "Caf\xE9" is not valid UTF-8 but decodes as "Café".
		data := []byte("[{\"question\": \"Caf\xE9?\", \"options\": {\"a\": \"oui\", \"b\": \"non\"}, \"answer\": \"a\"}]")
		path := writeTestFile(t, "questions.json", data)

		questions, err := bank.LoadQuestions(ctx, path)
		gt.NoError(t, err).Required()
		gt.Array(t, questions).Length(1)
		gt.Value(t, questions[0].Text).Equal("Café?")
	})
}

func TestLoadElements(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a context corpus", func(t *testing.T) {
		path := writeTestFile(t, "elements.json", []byte(`{
			"sky": "blue",
			"count": 3,
			"nested": {"deep": true}
		}`))

		elements, err := bank.LoadElements(ctx, path)
		gt.NoError(t, err).Required()
		gt.Value(t, elements["sky"]).Equal("blue")
		gt.Value(t, elements["count"]).Equal(float64(3))
	})

	t.Run("rejects a JSON array", func(t *testing.T) {
		path := writeTestFile(t, "elements.json", []byte(`["not", "an", "object"]`))

		_, err := bank.LoadElements(ctx, path)
		gt.Value(t, err).NotNil()
	})

	t.Run("rejects a missing file", func(t *testing.T) {
		_, err := bank.LoadElements(ctx, filepath.Join(t.TempDir(), "absent.json"))
		gt.Value(t, err).NotNil()
	})
}
