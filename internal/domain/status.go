package domain

import "strings"

// StatusKey is the normalized facility status.
type StatusKey string

const (
	StatusDestroyed       StatusKey = "destroyed"
	StatusLikelyDestroyed StatusKey = "likely-destroyed"
	StatusConstruction    StatusKey = "construction"
	StatusOperational     StatusKey = "operational"
	StatusUnknown         StatusKey = "unknown"
	StatusOther           StatusKey = "other"
)

// StatusMeta is a normalized status with its label and display color.
type StatusMeta struct {
	Key   StatusKey `json:"key"`
	Label string    `json:"label"`
	Color string    `json:"color"`
}

// Display colors shared by charts, cards and the flowchart overlay.
const (
	ColorDestroyed       = "#c0392b"
	ColorLikelyDestroyed = "#e67e22"
	ColorConstruction    = "#f1c40f"
	ColorOperational     = "#27ae60"
	ColorUnknown         = "#95a5a6"
	ColorOther           = "#7f8c8d"
)

var statusMetas = map[StatusKey]StatusMeta{
	StatusDestroyed:       {Key: StatusDestroyed, Label: "Destroyed", Color: ColorDestroyed},
	StatusLikelyDestroyed: {Key: StatusLikelyDestroyed, Label: "Likely Destroyed", Color: ColorLikelyDestroyed},
	StatusConstruction:    {Key: StatusConstruction, Label: "Under Construction", Color: ColorConstruction},
	StatusOperational:     {Key: StatusOperational, Label: "Operational", Color: ColorOperational},
	StatusUnknown:         {Key: StatusUnknown, Label: "Unknown", Color: ColorUnknown},
}

// MetaFor returns the fixed StatusMeta for a key. StatusOther has no fixed
// label; its label is the raw status text.
func MetaFor(key StatusKey) StatusMeta {
	if m, ok := statusMetas[key]; ok {
		return m
	}
	return StatusMeta{Key: StatusOther, Label: "Other", Color: ColorOther}
}

// FilterableStatuses lists the status keys that can be used as filter tags.
func FilterableStatuses() []StatusKey {
	return []StatusKey{
		StatusDestroyed,
		StatusLikelyDestroyed,
		StatusConstruction,
		StatusOperational,
		StatusUnknown,
	}
}

// ClassifyStatus normalizes free-text facility status. The checks are
// ordered; "Likely destroyed, under construction" is likely-destroyed.
func ClassifyStatus(raw string) StatusMeta {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return MetaFor(StatusUnknown)
	}
	s := strings.ToLower(trimmed)

	switch {
	case strings.Contains(s, "likely") && strings.Contains(s, "destroyed"):
		return MetaFor(StatusLikelyDestroyed)
	case strings.Contains(s, "destroyed"):
		return MetaFor(StatusDestroyed)
	case strings.Contains(s, "construction"):
		return MetaFor(StatusConstruction)
	case strings.Contains(s, "operational") && !strings.Contains(s, "non-operational"):
		return MetaFor(StatusOperational)
	case strings.Contains(s, "unknown") || strings.Contains(s, "non-operational"):
		return MetaFor(StatusUnknown)
	default:
		return StatusMeta{Key: StatusOther, Label: trimmed, Color: ColorOther}
	}
}
