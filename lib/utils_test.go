package lib

import (
	"sort"
	"testing"
)

func TestSliceContains(t *testing.T) {
	tests := []struct {
		name     string
		slice    []string
		item     string
		expected bool
	}{
		{
			name:     "Item is in the slice",
			slice:    []string{"sub.example.com", "www.example.com"},
			item:     "www.example.com",
			expected: true,
		},
		{
			name:     "Item is not in the slice",
			slice:    []string{"sub.example.com", "www.example.com"},
			item:     "mail.example.com",
			expected: false,
		},
		{
			name:     "Empty slice",
			slice:    []string{},
			item:     "anything",
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := SliceContains(test.slice, test.item)
			if result != test.expected {
				t.Errorf("SliceContains(%v, %s) = %v; expected %v", test.slice, test.item, result, test.expected)
			}
		})
	}
}

func TestSliceContainsInt(t *testing.T) {
	if !SliceContainsInt([]int{80, 443, 8080}, 443) {
		t.Error()
	}
	if SliceContainsInt([]int{80, 443}, 22) {
		t.Error()
	}
}

func TestGetUniqueItems(t *testing.T) {
	items := []string{"a.example.com", "b.example.com", "a.example.com"}
	unique := GetUniqueItems(items)
	if len(unique) != 2 {
		t.Errorf("expected 2 unique items, got %d", len(unique))
	}
	sort.Strings(unique)
	if unique[0] != "a.example.com" || unique[1] != "b.example.com" {
		t.Errorf("unexpected items: %v", unique)
	}
}

func TestFilterOutString(t *testing.T) {
	filtered := FilterOutString([]string{"a", "b", "a", "c"}, "a")
	if len(filtered) != 2 {
		t.Errorf("expected 2 items, got %d", len(filtered))
	}
}
