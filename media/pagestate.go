package media

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/PuerkitoBio/goquery"

	"tokgrab/models"
)

// PageVariant names one of the JSON blobs TikTok embeds in its pages. Which
// one is present depends on the page render path, so each is tried in turn.
type PageVariant string

const (
	VariantUniversalData PageVariant = "universal_data"
	VariantSigiState     PageVariant = "sigi_state"
	VariantNextData      PageVariant = "next_data"
)

var pageVariants = []struct {
	variant  PageVariant
	selector string
}{
	{VariantUniversalData, "script#__UNIVERSAL_DATA_FOR_REHYDRATION__"},
	{VariantSigiState, "script#SIGI_STATE"},
	{VariantNextData, "script#__NEXT_DATA__"},
}

// itemPaths locate the post object inside a parsed page state.
var itemPaths = []struct {
	name string
	find func(raw []byte, state map[string]any) map[string]any
}{
	{
		name: "default_scope",
		find: func(_ []byte, state map[string]any) map[string]any {
			return dig(state, "__DEFAULT_SCOPE__", "webapp.video-detail", "itemInfo", "itemStruct")
		},
	},
	{
		name: "item_module",
		find: func(raw []byte, _ map[string]any) map[string]any {
			var wrapper struct {
				ItemModule json.RawMessage `json:"ItemModule"`
			}
			if err := json.Unmarshal(raw, &wrapper); err != nil {
				return nil
			}
			return firstObjectValue(wrapper.ItemModule)
		},
	},
	{
		name: "page_props",
		find: func(_ []byte, state map[string]any) map[string]any {
			return dig(state, "props", "pageProps", "itemInfo", "itemStruct")
		},
	},
}

// PageImages is one successfully parsed variant.
type PageImages struct {
	Variant PageVariant
	Path    string
	Images  []models.SlideshowImage
}

// ExtractPageImages parses page HTML and returns the images of the first
// variant whose item carries an imagePost. ok is false when none does.
func ExtractPageImages(r io.Reader) (PageImages, bool, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return PageImages{}, false, err
	}

	for _, candidate := range pageVariants {
		script := doc.Find(candidate.selector).First()
		if script.Length() == 0 {
			continue
		}
		if result, ok := ParseVariant(candidate.variant, []byte(script.Text())); ok {
			return result, true, nil
		}
	}
	return PageImages{}, false, nil
}

// ParseVariant extracts slideshow images from one embedded JSON blob.
func ParseVariant(variant PageVariant, raw []byte) (PageImages, bool) {
	raw = bytes.TrimSpace(raw)
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil || state == nil {
		return PageImages{}, false
	}

	for _, path := range itemPaths {
		item := path.find(raw, state)
		if item == nil {
			continue
		}
		entries, ok := dig(item, "imagePost")["images"].([]any)
		if !ok {
			continue
		}
		// an imagePost settles the search even when every entry lacks a URL
		return PageImages{Variant: variant, Path: path.name, Images: mapPageImages(entries)}, true
	}
	return PageImages{}, false
}

func mapPageImages(entries []any) []models.SlideshowImage {
	images := make([]models.SlideshowImage, 0, len(entries))
	for _, entry := range entries {
		img, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		url := pageImageURL(img)
		if url == "" {
			continue
		}
		images = append(images, models.SlideshowImage{
			URL:    url,
			Width:  intOr(img["imageWidth"], 1080),
			Height: intOr(img["imageHeight"], 1920),
		})
	}
	return images
}

func pageImageURL(img map[string]any) string {
	imageURL, _ := img["imageURL"].(map[string]any)
	if list, ok := imageURL["urlList"].([]any); ok && len(list) > 0 {
		if s, ok := list[0].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := imageURL["url"].(string); ok && s != "" {
		return s
	}
	s, _ := img["url"].(string)
	return s
}

func dig(m map[string]any, keys ...string) map[string]any {
	current := m
	for _, key := range keys {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// firstObjectValue returns the first value of a JSON object in document
// order. Go maps forget key order, so the object is walked token by token.
func firstObjectValue(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	if !dec.More() {
		return nil
	}
	if _, err := dec.Token(); err != nil {
		return nil
	}
	var value map[string]any
	if err := dec.Decode(&value); err != nil {
		return nil
	}
	return value
}

func intOr(v any, def int) int {
	if n, ok := v.(float64); ok && n > 0 {
		return int(n)
	}
	return def
}
