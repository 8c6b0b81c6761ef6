package rules

// Built-in rule names.
const (
	RuleScreenshots   = "Screenshots"
	RulePhotos        = "Photos"
	RuleMusic         = "Music"
	RuleVideos        = "Videos"
	RuleDocuments     = "Documents"
	RuleOldInstallers = "Old Installers"
	RuleStaleArchives = "Stale Archives"
)

func boolPtr(b bool) *bool { return &b }

// DefaultRules returns the built-in rules. Templates reference destination
// aliases such as {pictures}; unknown aliases are left verbatim.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     RuleScreenshots,
			Priority: 100,
			Match: Conditions{
				Extension: []string{"png", "jpg", "jpeg", "heic"},
				Filename:  []string{"Screenshot*", "Screen Shot*", "CleanShot*", "Capture*"},
			},
			Action: Action{MoveTo: "{pictures}/Screenshots/{year}-{month}"},
		},
		{
			Name:     RulePhotos,
			Priority: 90,
			Match: Conditions{
				Category: "image",
				HasExif:  boolPtr(true),
			},
			Action: Action{MoveTo: "{pictures}/{exif.year}/{exif.month}"},
		},
		{
			Name:     RuleMusic,
			Priority: 80,
			Match: Conditions{
				Category: "audio",
			},
			Action: Action{MoveTo: "{music}/{artist}/{album}"},
		},
		{
			Name:     RuleOldInstallers,
			Priority: 70,
			Match: Conditions{
				Extension: []string{"dmg", "pkg", "exe", "msi", "deb", "rpm", "appimage"},
				Location:  "~/Downloads",
				Age:       "> 30 days",
			},
			Action: Action{Delete: true},
		},
		{
			Name:     RuleVideos,
			Priority: 60,
			Match: Conditions{
				Category: "video",
			},
			Action: Action{Suggest: "{videos}/{year}"},
		},
		{
			Name:     RuleDocuments,
			Priority: 50,
			Match: Conditions{
				Category: "document",
			},
			Action: Action{Suggest: "{documents}/{year}"},
		},
		{
			Name:     RuleStaleArchives,
			Priority: 40,
			Match: Conditions{
				Category: "archive",
				Accessed: "> 6 months",
			},
			Action: Action{Archive: "{archive}/{year}", Confirm: boolPtr(true)},
		},
	}
}
