package guidance

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jjckrbbt/tenant-guidance/internal/store"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON returns the JSON payload of a model reply: the body of the first
// ```json fence, or failing that the span from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		return m[1], nil
	}
	if m := bareObject.FindString(raw); m != "" {
		return m, nil
	}
	return "", ErrInvalidJSON
}

// ParseModelReply decodes the model's reply into a GuidanceResponse without validating its values.
func ParseModelReply(raw string) (*GuidanceResponse, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var resp GuidanceResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, schemaErr("field %q has type %s, want %s", typeErr.Field, typeErr.Value, typeErr.Type)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &resp, nil
}

// ResponseValidator checks parsed replies against the configured action and confidence vocabularies.
type ResponseValidator struct {
	validate    *validator.Validate
	actions     map[string]struct{}
	confidences map[string]string
}

// NewResponseValidator builds a validator for the given action keys and confidence labels.
func NewResponseValidator(actions, confidenceLabels []string) *ResponseValidator {
	rv := &ResponseValidator{
		validate:    validator.New(),
		actions:     make(map[string]struct{}, len(actions)),
		confidences: make(map[string]string, len(confidenceLabels)),
	}
	for _, a := range actions {
		rv.actions[a] = struct{}{}
	}
	for _, l := range confidenceLabels {
		rv.confidences[strings.ToLower(l)] = l
	}

	rv.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = rv.validate.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		_, ok := rv.actions[fl.Field().String()]
		return ok
	})
	_ = rv.validate.RegisterValidation("confidence", func(fl validator.FieldLevel) bool {
		_, ok := rv.confidences[strings.ToLower(fl.Field().String())]
		return ok
	})
	return rv
}

// Validate normalises resp in place and reports a schema mismatch if it is not acceptable.
// Confidence labels are matched case-insensitively and rewritten to their canonical spelling;
// duplicate actions are dropped keeping first occurrence.
func (rv *ResponseValidator) Validate(resp *GuidanceResponse) error {
	if err := rv.validate.Struct(resp); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %q)", strings.TrimPrefix(fe.Namespace(), "GuidanceResponse."), fe.Tag(), fmt.Sprint(fe.Value())))
			}
			return schemaErr("%s", strings.Join(msgs, "; "))
		}
		return schemaErr("%v", err)
	}

	resp.Analysis.Confidence = rv.confidences[strings.ToLower(resp.Analysis.Confidence)]
	resp.Actions = dedupe(resp.Actions)
	return nil
}

func dedupe(actions []string) []string {
	out := make([]string, 0, len(actions))
	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// SourcesFrom maps documents carrying a source URL to citations, preserving order.
// Title and URL are both the source URL; the store has no separate title.
func SourcesFrom(docs []store.RetrievedDocument) []Source {
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		if d.SourceURL == "" {
			continue
		}
		sources = append(sources, Source{Title: d.SourceURL, URL: d.SourceURL})
	}
	return sources
}

// BuildContext joins matched document contents with sep. No documents yields "".
func BuildContext(docs []store.RetrievedDocument, sep string) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, sep)
}
