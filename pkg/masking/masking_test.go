package masking

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPrecedence(t *testing.T) {
	for _, tt := range []struct {
		name   string
		fields []string
		masks  []string
		want   map[string]string
	}{{
		name:   "single field with default mask",
		fields: []string{"test"},
		want:   map[string]string{"test": DefaultStringMask},
	}, {
		name:   "single field with custom mask",
		fields: []string{"test"},
		masks:  []string{"testmask"},
		want:   map[string]string{"test": "testmask"},
	}, {
		name:   "multiple fields with default mask",
		fields: []string{"test", "test2", "test3"},
		want: map[string]string{
			"test":  DefaultStringMask,
			"test2": DefaultStringMask,
			"test3": DefaultStringMask,
		},
	}, {
		name:   "multiple fields with single custom mask",
		fields: []string{"test", "test2", "test3"},
		masks:  []string{"testmask"},
		want: map[string]string{
			"test":  "testmask",
			"test2": "testmask",
			"test3": "testmask",
		},
	}, {
		name:   "multiple fields with matching masks",
		fields: []string{"test", "test2", "test3"},
		masks:  []string{"testmask", "test2mask", "test3mask"},
		want: map[string]string{
			"test":  "testmask",
			"test2": "test2mask",
			"test3": "test3mask",
		},
	}, {
		name:   "multiple fields with fewer masks",
		fields: []string{"test", "test2", "test3"},
		masks:  []string{"testmask", "test2mask"},
		want: map[string]string{
			"test":  "testmask",
			"test2": "test2mask",
			"test3": DefaultStringMask,
		},
	}} {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Apply(WithQueryStringMask(tt.fields, tt.masks...))
			if diff := cmp.Diff(tt.want, m.QueryStringMasks); diff != "" {
				t.Errorf("query string masks mismatch (-want +got):\n%s", diff)
			}

			m = New()
			m.Apply(WithRequestCookieMask(tt.fields, tt.masks...))
			if diff := cmp.Diff(tt.want, m.RequestCookieMasks); diff != "" {
				t.Errorf("request cookie masks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyNumberDefault(t *testing.T) {
	m := New()
	m.Apply(
		WithRequestFieldMaskNumber([]string{"a", "b"}, "1"),
		WithResponseFieldMaskNumber([]string{"c", "d"}, "2", "3", "4"),
		WithResponseFieldMaskNumber([]string{"e", "f"}, "5", "6"),
		WithRequestFieldMaskNumber([]string{"g", "h", "i"}, "7", "8"),
	)

	assert.Equal(t, map[string]string{"a": "1", "b": "1", "g": "7", "h": "8", "i": DefaultNumberMask}, m.RequestFieldMasksNumber)
	assert.Equal(t, map[string]string{"c": "2", "d": "3", "e": "5", "f": "6"}, m.ResponseFieldMasksNumber)
	assert.Empty(t, m.RequestFieldMasksString)
}

func TestApplyTablesAreIndependent(t *testing.T) {
	m := New()
	m.Apply(
		WithRequestHeaderMask([]string{"Authorization"}),
		WithResponseHeaderMask([]string{"Set-Cookie"}, "hidden"),
		WithRequestHeaderMask([]string{"Authorization"}, "later"),
	)

	assert.Equal(t, map[string]string{"Authorization": "later"}, m.RequestHeaderMasks)
	assert.Equal(t, map[string]string{"Set-Cookie": "hidden"}, m.ResponseHeaderMasks)
	for _, c := range []Category{QueryString, RequestCookie, ResponseCookie, RequestFieldString, ResponseFieldString} {
		assert.Empty(t, m.Table(c), c.String())
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := New()
	m.Apply(WithResponseCookieMask([]string{"session"}))

	c := m.Clone()
	m.Apply(WithResponseCookieMask([]string{"other"}))

	assert.Equal(t, map[string]string{"session": DefaultStringMask}, c.ResponseCookieMasks)
	assert.Len(t, m.ResponseCookieMasks, 2)
}

func TestParseCategory(t *testing.T) {
	for c := QueryString; c <= ResponseFieldNumber; c++ {
		got, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCategory(" Request_Header ")
	require.NoError(t, err)
	assert.Equal(t, RequestHeader, got)

	_, err = ParseCategory("request_body")
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	table := map[string]string{"token": "xxx"}

	v, ok := Value(table, "token", "secret")
	assert.True(t, ok)
	assert.Equal(t, "xxx", v)

	v, ok = Value(table, "Token", "secret")
	assert.False(t, ok)
	assert.Equal(t, "secret", v)
}
