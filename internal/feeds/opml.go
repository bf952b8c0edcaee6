package feeds

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matthewjhunter/veille/internal/storage"
)

// OPML structures for parsing
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr,omitempty"`
	Head    OPMLHead `xml:"head"`
	Body    OPMLBody `xml:"body"`
}

type OPMLHead struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type OPMLBody struct {
	Outlines []OPMLOutline `xml:"outline"`
}

type OPMLOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr,omitempty"`
	Type     string        `xml:"type,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string        `xml:"htmlUrl,attr,omitempty"`
	Outlines []OPMLOutline `xml:"outline"`
}

// OPMLFeed is one feed found in an OPML document.
type OPMLFeed struct {
	Title   string
	XMLURL  string
	HTMLURL string
}

// ParseOPML returns every outline with a feed URL, folders flattened, in
// document order. Repeated URLs are returned once.
func ParseOPML(r io.Reader) ([]OPMLFeed, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	var feeds []OPMLFeed
	seen := make(map[string]bool)
	var walk func(outlines []OPMLOutline)
	walk = func(outlines []OPMLOutline) {
		for _, o := range outlines {
			if o.XMLURL != "" && !seen[o.XMLURL] {
				seen[o.XMLURL] = true
				title := o.Title
				if title == "" {
					title = o.Text
				}
				feeds = append(feeds, OPMLFeed{Title: title, XMLURL: o.XMLURL, HTMLURL: o.HTMLURL})
			}
			// Process nested outlines (folders)
			if len(o.Outlines) > 0 {
				walk(o.Outlines)
			}
		}
	}
	walk(doc.Body.Outlines)
	return feeds, nil
}

// ReadOPML parses the OPML file at path.
func ReadOPML(path string) ([]OPMLFeed, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OPML file: %w", err)
	}
	defer fh.Close()
	return ParseOPML(fh)
}

// ExportOPML writes the RSS sources as an OPML 2.0 document titled title.
// Other source kinds are not feeds and are left out.
func ExportOPML(w io.Writer, title string, sources []storage.Source) error {
	doc := OPML{
		Version: "2.0",
		Head:    OPMLHead{Title: title, DateCreated: time.Now().UTC().Format(time.RFC1123Z)},
	}
	for _, s := range sources {
		if s.Kind != storage.SourceRSS {
			continue
		}
		text := s.Title
		if text == "" {
			text = s.URL
		}
		doc.Body.Outlines = append(doc.Body.Outlines, OPMLOutline{
			Text:   text,
			Title:  s.Title,
			Type:   "rss",
			XMLURL: s.URL,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	return enc.Close()
}
