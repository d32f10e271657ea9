package lib

import (
	"os"
)

// SliceContains utility function to check if a slice of strings contains the specified string
func SliceContains(slice []string, item string) bool {
	set := make(map[string]struct{}, len(slice))
	for _, s := range slice {
		set[s] = struct{}{}
	}

	_, ok := set[item]
	return ok
}

// SliceContainsInt utility function to check if a slice of integers contains the specified integer
func SliceContainsInt(slice []int, item int) bool {
	set := make(map[int]struct{}, len(slice))
	for _, s := range slice {
		set[s] = struct{}{}
	}

	_, ok := set[item]
	return ok
}

func LocalFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || os.IsExist(err)
}

// GetUniqueItems takes a slice of strings and returns a new slice with unique items.
func GetUniqueItems(items []string) []string {
	uniqueItemsMap := make(map[string]bool)
	for _, item := range items {
		uniqueItemsMap[item] = true
	}

	uniqueItems := make([]string, 0, len(uniqueItemsMap))
	for item := range uniqueItemsMap {
		uniqueItems = append(uniqueItems, item)
	}

	return uniqueItems
}

// FilterOutString removes all instances of target from the slice.
func FilterOutString(slice []string, target string) []string {
	filtered := []string{}
	for _, item := range slice {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
