package model

import "testing"

func TestItemTypeFromCode(t *testing.T) {
	tests := []struct {
		code string
		want ItemType
	}{
		{"a", ItemTypeAlbum},
		{"t", ItemTypeTrack},
		{"p", ItemTypePackage},
		{"z", ItemTypeUnknown},
		{"", ItemTypeUnknown},
		{"A", ItemTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ItemTypeFromCode(tt.code); got != tt.want {
				t.Errorf("ItemTypeFromCode(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestPurchaseKey(t *testing.T) {
	date := "01 Jan 2024 00:00:00 GMT"
	empty := ""

	tests := []struct {
		name string
		code string
		id   string
		date *string
		want string
	}{
		{"with date", "a", "12345", &date, "a:12345:01 Jan 2024 00:00:00 GMT"},
		{"nil date", "t", "9", nil, "t:9:unknown"},
		{"empty date", "p", "7", &empty, "p:7:unknown"},
		{"missing type", "", "7", nil, ":7:unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PurchaseKey(tt.code, tt.id, tt.date); got != tt.want {
				t.Errorf("PurchaseKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThumbnailURL(t *testing.T) {
	if got := ThumbnailURL("67890"); got != "https://f4.bcbits.com/img/a67890_10.jpg" {
		t.Errorf("ThumbnailURL = %q", got)
	}
	if got := ThumbnailURL(""); got != NoArtPlaceholder {
		t.Errorf("ThumbnailURL(\"\") = %q, want placeholder", got)
	}
	if got := ThumbnailURL("0"); got != NoArtPlaceholder {
		t.Errorf("ThumbnailURL(\"0\") = %q, want placeholder", got)
	}
}

func TestLargeArtURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://f4.bcbits.com/img/a67890_10.jpg", "https://f4.bcbits.com/img/a67890_16.jpg"},
		{NoArtPlaceholder, NoArtPlaceholder},
		{"https://example.com/cover.png", "https://example.com/cover.png"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := LargeArtURL(tt.in); got != tt.want {
				t.Errorf("LargeArtURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPurchaseRow_DisplayName(t *testing.T) {
	tests := []struct {
		row  PurchaseRow
		want string
	}{
		{PurchaseRow{Artist: "The Band", Title: "The Album"}, "The Band - The Album"},
		{PurchaseRow{Title: "Only Title"}, "Only Title"},
		{PurchaseRow{Artist: "Only Artist"}, "Only Artist"},
	}

	for _, tt := range tests {
		if got := tt.row.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusIdle.Terminal() || StatusScraping.Terminal() {
		t.Error("idle and scraping should not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusError.Terminal() {
		t.Error("completed and error should be terminal")
	}
}
