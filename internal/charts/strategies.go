package charts

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/andybalholm/cascadia"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/normalize"
	"golang.org/x/net/html"
)

// UnknownArtist is used when a strategy finds a title but no artist.
const UnknownArtist = "Unknown"

var (
	ldScripts        = cascadia.MustCompile(`script[type="application/ld+json"]`)
	songMeta         = cascadia.MustCompile(`meta[property="music:song"]`)
	musicianMeta     = cascadia.MustCompile(`meta[property="music:musician"], meta[property="music:song:artist"]`)
	remixCredit      = regexp.MustCompile(`(?i)\(([^)]+)\s+remix\)`)
	featCredit       = regexp.MustCompile(`(?i)(?:feat\.?|ft\.?)\s+([^)\]]+)`)
	isoDuration      = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
	playlistScriptID = "schema:music-playlist"
)

type ldPlaylist struct {
	Track []json.RawMessage `json:"track"`
}

type ldRecording struct {
	Name     string          `json:"name"`
	ByArtist json.RawMessage `json:"byArtist"`
	Duration string          `json:"duration"`
	Position json.RawMessage `json:"position"`
	Item     *ldRecording    `json:"item"`
}

type ldArtist struct {
	Name string `json:"name"`
}

// structured reads schema.org MusicPlaylist JSON-LD. The playlist script is preferred over other JSON-LD blocks.
func structured(root *html.Node, src Source) Parsed {
	scripts := ldScripts.MatchAll(root)
	for i, s := range scripts {
		if attr(s, "id") == playlistScriptID && i > 0 {
			scripts[0], scripts[i] = scripts[i], scripts[0]
			break
		}
	}

	for _, s := range scripts {
		for _, pl := range decodePlaylists(rawText(s)) {
			var entries []models.ChartEntry
			for _, raw := range pl.Track {
				var rec ldRecording
				if err := json.Unmarshal(raw, &rec); err != nil {
					continue
				}
				pos := jsonInt(rec.Position)
				if rec.Item != nil {
					rec = *rec.Item
				}
				title := strings.TrimSpace(rec.Name)
				if title == "" {
					continue
				}
				artist := artistNames(rec.ByArtist)
				if artist == "" {
					artist = artistFromTitle(title)
				}
				entries = append(entries, models.ChartEntry{
					Position:   pos,
					RawTitle:   title,
					RawArtist:  artist,
					DurationMs: parseISODuration(rec.Duration),
				})
			}
			if len(entries) > 0 {
				return Parsed{Entries: entries}
			}
		}
	}
	return Parsed{}
}

func decodePlaylists(body string) []ldPlaylist {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if strings.HasPrefix(body, "[") {
		var many []ldPlaylist
		if err := json.Unmarshal([]byte(body), &many); err != nil {
			return nil
		}
		return many
	}
	var one ldPlaylist
	if err := json.Unmarshal([]byte(body), &one); err != nil {
		return nil
	}
	return []ldPlaylist{one}
}

func artistNames(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var one ldArtist
	if err := json.Unmarshal(raw, &one); err == nil {
		return normalize.Artist(one.Name)
	}
	var many []ldArtist
	if err := json.Unmarshal(raw, &many); err == nil {
		names := make([]string, len(many))
		for i, a := range many {
			names[i] = a.Name
		}
		return normalize.JoinArtists(names)
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return normalize.Artist(name)
	}
	return ""
}

// artistFromTitle guesses an artist from credits embedded in a title.
func artistFromTitle(title string) string {
	if m := remixCredit.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := featCredit.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	if _, after, ok := strings.Cut(title, " - "); ok && strings.TrimSpace(after) != "" {
		return strings.TrimSpace(after)
	}
	return UnknownArtist
}

// parseISODuration converts an ISO-8601 duration such as PT3M25S to milliseconds. Unparseable input yields 0.
func parseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || s == "" {
		return 0
	}
	var ms float64
	for i, unit := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0
		}
		ms += v * unit * 1000
	}
	return int(ms)
}

func jsonInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, _ = strconv.Atoi(strings.TrimSpace(s))
	}
	return n
}

// markup applies the source's CSS selectors row by row. Rows without a title or artist are dropped.
func markup(root *html.Node, src Source) Parsed {
	sel := src.Selectors
	if sel.Row == "" {
		return Parsed{}
	}

	row, err := cascadia.Compile(sel.Row)
	if err != nil {
		return Parsed{}
	}
	title := compileOptional(sel.Title)
	artist := compileOptional(sel.Artist)
	position := compileOptional(sel.Position)
	version := compileOptional(sel.Version)
	remixers := compileOptional(sel.Remixers)
	if title == nil || artist == nil {
		return Parsed{}
	}

	var p Parsed
	for _, r := range row.MatchAll(root) {
		t := text(title.MatchFirst(r))

		var artists []string
		for _, a := range artist.MatchAll(r) {
			artists = append(artists, text(a))
		}
		a := normalize.JoinArtists(artists)

		if t == "" || a == "" {
			p.Dropped++
			continue
		}

		if version != nil {
			v, _, _ := strings.Cut(text(version.MatchFirst(r)), "(")
			if v = strings.TrimSpace(v); v != "" {
				t = t + " (" + v + ")"
			}
			if remixers != nil {
				var names []string
				for _, n := range remixers.MatchAll(r) {
					names = append(names, text(n))
				}
				if rx := normalize.JoinArtists(names); rx != "" && !strings.Contains(strings.ToLower(v), "remix") {
					t = t + " (" + rx + " Remix)"
				}
			}
		}

		var pos int
		if position != nil {
			pos, _ = strconv.Atoi(text(position.MatchFirst(r)))
		}

		p.Entries = append(p.Entries, models.ChartEntry{Position: pos, RawTitle: t, RawArtist: a})
	}
	return p
}

func compileOptional(s string) cascadia.Selector {
	if s == "" {
		return nil
	}
	sel, err := cascadia.Compile(s)
	if err != nil {
		return nil
	}
	return sel
}

// meta reads music:song meta tags, taking the title from the song URL slug.
// Artists come from music:musician tags when there is one per song.
func meta(root *html.Node, src Source) Parsed {
	songs := songMeta.MatchAll(root)
	musicians := musicianMeta.MatchAll(root)

	var p Parsed
	for i, s := range songs {
		t := slugTitle(attr(s, "content"))
		if t == "" {
			continue
		}
		a := UnknownArtist
		if len(musicians) == len(songs) {
			if name := slugTitle(attr(musicians[i], "content")); name != "" {
				a = name
			}
		}
		p.Entries = append(p.Entries, models.ChartEntry{RawTitle: t, RawArtist: a})
	}
	return p
}

// slugTitle turns https://music.apple.com/us/song/some-song/123 into "Some Song".
func slugTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	slug, err := url.PathUnescape(parts[len(parts)-2])
	if err != nil {
		return ""
	}
	return titleCase(strings.ReplaceAll(slug, "-", " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// sample returns the source's built-in track list.
func sample(_ *html.Node, src Source) Parsed {
	var p Parsed
	for _, t := range src.Sample {
		p.Entries = append(p.Entries, models.ChartEntry{RawTitle: t.Title, RawArtist: t.Artist})
	}
	return p
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func rawText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// text returns the collapsed text content of n.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return normalize.Artist(b.String())
}
