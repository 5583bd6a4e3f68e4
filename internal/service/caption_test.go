package service

import "testing"

func TestComposeCaption(t *testing.T) {
	cases := []struct {
		name    string
		content string
		topics  []string
		want    string
	}{
		{
			name:    "no topics",
			content: "just a thought",
			topics:  nil,
			want:    "just a thought",
		},
		{
			name:    "appends missing topics",
			content: "morning run done",
			topics:  []string{"fitness", "running"},
			want:    "morning run done\n\n#fitness #running",
		},
		{
			name:    "multi word topic collapses into one tag",
			content: "gallery visit",
			topics:  []string{"New York"},
			want:    "gallery visit\n\n#NewYork",
		},
		{
			name:    "inline words and hashtag both suppress the tag",
			content: "Loving the new york scene today #art",
			topics:  []string{"New York", "art"},
			want:    "Loving the new york scene today #art",
		},
		{
			name:    "space stripped inline form suppresses the tag",
			content: "shoutout to newyork crews",
			topics:  []string{"New York"},
			want:    "shoutout to newyork crews",
		},
		{
			name:    "word boundary means substrings do not count",
			content: "the party was great",
			topics:  []string{"art"},
			want:    "the party was great\n\n#art",
		},
		{
			name:    "case insensitive hashtag match",
			content: "already tagged #NEWYORK here",
			topics:  []string{"New York"},
			want:    "already tagged #NEWYORK here",
		},
		{
			name:    "duplicate topics collapse",
			content: "sunset",
			topics:  []string{"photo", "Photo"},
			want:    "sunset\n\n#photo",
		},
		{
			name:    "empty content still gets tags",
			content: "",
			topics:  []string{"art"},
			want:    "#art",
		},
		{
			name:    "blank topics skipped",
			content: "hello",
			topics:  []string{"", "  "},
			want:    "hello",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComposeCaption(tc.content, tc.topics)
			if got != tc.want {
				t.Fatalf("ComposeCaption(%q, %v) = %q, want %q", tc.content, tc.topics, got, tc.want)
			}
		})
	}
}
