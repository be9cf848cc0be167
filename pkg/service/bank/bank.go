package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"golang.org/x/text/encoding/charmap"
)

// questionRecord is the on-disk shape of one quiz bank entry.
type questionRecord struct {
	Question string            `json:"question"`
	Options  map[string]string `json:"options"`
	Answer   string            `json:"answer"`
}

// LoadQuestions reads a quiz bank from a local path or a gs:// URL. The
// bank is a JSON array of {question, options, answer} records. JSON
// objects carry no order, so option labels are presented in sorted label
// order (the label set is a closed alphabet).
func LoadQuestions(ctx context.Context, path string) ([]*model.Question, error) {
	data, err := readSource(ctx, path)
	if err != nil {
		return nil, err
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode quiz bank", goerr.V("path", path))
	}

	var records []questionRecord
	if err := json.Unmarshal([]byte(text), &records); err != nil {
		return nil, goerr.Wrap(err, "failed to parse quiz bank JSON", goerr.V("path", path))
	}
	if len(records) == 0 {
		return nil, goerr.New("quiz bank is empty", goerr.V("path", path))
	}

	questions := make([]*model.Question, 0, len(records))
	for i, rec := range records {
		q, err := toQuestion(rec)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid quiz bank entry",
				goerr.V("path", path),
				goerr.V("index", i))
		}
		questions = append(questions, q)
	}

	return questions, nil
}

// LoadElements reads the context corpus: an arbitrary JSON object mapping
// string keys to values, used only as filler context for scrambling.
func LoadElements(ctx context.Context, path string) (map[string]any, error) {
	data, err := readSource(ctx, path)
	if err != nil {
		return nil, err
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode context corpus", goerr.V("path", path))
	}

	var elements map[string]any
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		return nil, goerr.Wrap(err, "failed to parse context corpus JSON", goerr.V("path", path))
	}

	return elements, nil
}

func toQuestion(rec questionRecord) (*model.Question, error) {
	labels := make([]string, 0, len(rec.Options))
	for label := range rec.Options {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	options := make([]model.Choice, 0, len(labels))
	for _, label := range labels {
		options = append(options, model.Choice{
			Label: model.NormalizeLabel(label),
			Text:  rec.Options[label],
		})
	}

	q := &model.Question{
		Text:    strings.TrimSpace(rec.Question),
		Options: options,
		Answer:  model.NormalizeLabel(rec.Answer),
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	return q, nil
}

func readSource(ctx context.Context, path string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(path, "gs://"); ok {
		return readObject(ctx, rest)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from a CLI argument
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read input file", goerr.V("path", path))
	}
	return data, nil
}

func readObject(ctx context.Context, bucketAndObject string) ([]byte, error) {
	bucket, object, ok := strings.Cut(bucketAndObject, "/")
	if !ok || bucket == "" || object == "" {
		return nil, goerr.New("invalid gs:// URL, expected gs://bucket/object",
			goerr.V("url", "gs://"+bucketAndObject))
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}
	defer func() {
		_ = client.Close()
	}()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open storage object",
			goerr.V("bucket", bucket),
			goerr.V("object", object))
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read storage object",
			goerr.V("bucket", bucket),
			goerr.V("object", object))
	}

	return data, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts raw input bytes to a string, attempting encodings in
// fallback order: UTF-8, UTF-8 with signature, Windows-1252, Latin-1. The
// first decoder that succeeds wins.
func decodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		stripped := data[len(utf8BOM):]
		if utf8.Valid(stripped) {
			return string(stripped), nil
		}
		data = stripped
	} else if utf8.Valid(data) {
		return string(data), nil
	}

	for _, cm := range []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1} {
		decoded, err := cm.NewDecoder().Bytes(data)
		if err == nil && !bytes.ContainsRune(decoded, utf8.RuneError) {
			return string(decoded), nil
		}
	}

	return "", goerr.New("input is not decodable in any supported encoding")
}
