package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	translationCacheSize = 1024
	translationCacheTTL  = 6 * time.Hour
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

var languages = map[string]bool{"en": true, "hi": true, "mr": true}

func SupportedLanguage(code string) bool {
	return languages[code]
}

// DetectLanguage reports "hi" when more than 30% of the runes are Devanagari,
// otherwise "en". Hindi and Marathi share the script and are not told apart.
func DetectLanguage(text string) string {
	total := utf8.RuneCountInString(text)
	if strings.TrimSpace(text) == "" || total == 0 {
		return "en"
	}
	deva := 0
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			deva++
		}
	}
	if float64(deva) > float64(total)*0.3 {
		return "hi"
	}
	return "en"
}

type Translation struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Translated bool   `json:"translated"`
}

// Translator calls a MyMemory compatible API. Successful translations are kept
// in a bounded LRU that also expires entries.
type Translator struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
	cache      *expirable.LRU[string, string]
}

func NewTranslator(baseURL string, logger logrus.FieldLogger) *Translator {
	return &Translator{
		baseURL:    trimBase(baseURL),
		httpClient: newHTTPClient(),
		logger:     logger,
		cache:      expirable.NewLRU[string, string](translationCacheSize, nil, translationCacheTTL),
	}
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus json.Number `json:"responseStatus"`
}

// Translate returns text in target. source may be empty to auto-detect.
// Upstream failures are not errors: the original text comes back with
// Translated false.
func (t *Translator) Translate(ctx context.Context, text, target, source string) (Translation, error) {
	if !SupportedLanguage(target) || (source != "" && !SupportedLanguage(source)) {
		return Translation{}, ErrUnsupportedLanguage
	}
	if source == "" {
		source = DetectLanguage(text)
	}
	res := Translation{Text: text, Source: source, Target: target}
	if strings.TrimSpace(text) == "" || source == target {
		return res, nil
	}

	key := text + "|" + source + "|" + target
	if cached, ok := t.cache.Get(key); ok {
		res.Text, res.Translated = cached, true
		return res, nil
	}

	out, err := t.fetch(ctx, text, source, target)
	if err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{"source": source, "target": target}).Warn("translation failed")
		return res, nil
	}
	t.cache.Add(key, out)
	res.Text, res.Translated = out, true
	return res, nil
}

func (t *Translator) fetch(ctx context.Context, text, source, target string) (string, error) {
	if t.baseURL == "" {
		return "", ErrNotConfigured
	}
	params := url.Values{}
	params.Set("q", text)
	params.Set("langpair", source+"|"+target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/get?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call translator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translator returned error: %s - %s", resp.Status, string(body))
	}
	var out myMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode translator response: %w", err)
	}
	if out.ResponseStatus.String() != "200" || out.ResponseData.TranslatedText == "" {
		return "", fmt.Errorf("translator returned status %s", out.ResponseStatus)
	}
	return out.ResponseData.TranslatedText, nil
}
