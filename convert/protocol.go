// Package convert translates a plugin's higher-level JSON-RPC response
// vocabulary (results, execute, card, form, ...) into the daemon's ordered
// core update stream (component I).
package convert

import "encoding/json"

// ResultItem is a single search/browse result a plugin returns, matching
// the wire shape of index.Item plus the inline action shortcuts the
// "results" and "match" response kinds support. Extra carries any fields
// beyond these, preserved verbatim so a round trip through the daemon
// doesn't drop plugin-specific display data.
type ResultItem struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Icon        string                 `json:"icon,omitempty"`
	Verb        string                 `json:"verb,omitempty"`
	OpenURL     string                 `json:"openUrl,omitempty"`
	Copy        string                 `json:"copy,omitempty"`
	Extra       map[string]interface{} `json:"-"`
}

// resultItemKnownFields lists the JSON keys ResultItem decodes onto named
// fields; every other top-level key is captured into Extra and re-emitted
// verbatim, the flatten-equivalent of the original protocol's unknown item
// fields.
var resultItemKnownFields = map[string]bool{
	"id": true, "name": true, "description": true, "icon": true,
	"verb": true, "openUrl": true, "copy": true,
}

// UnmarshalJSON decodes the known fields normally and stashes every other
// top-level key into Extra.
func (ri *ResultItem) UnmarshalJSON(data []byte) error {
	type resultItemAlias ResultItem
	var alias resultItemAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range resultItemKnownFields {
		delete(raw, key)
	}

	var extra map[string]interface{}
	if len(raw) > 0 {
		extra = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				continue
			}
			extra[k] = val
		}
	}

	*ri = ResultItem(alias)
	ri.Extra = extra
	return nil
}

// MarshalJSON re-emits the known fields plus every key captured in Extra, so
// a plugin's unrecognized result fields round-trip back out to the UI.
func (ri ResultItem) MarshalJSON() ([]byte, error) {
	type resultItemAlias ResultItem
	known, err := json.Marshal(resultItemAlias(ri))
	if err != nil {
		return nil, err
	}
	if len(ri.Extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range ri.Extra {
		if resultItemKnownFields[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// StatusData is a plugin's status fan-out payload: badges, chips,
// description, an optional FAB override, and optional ambient items.
type StatusData struct {
	Badges      []Badge           `json:"badges,omitempty"`
	Chips       []Chip            `json:"chips,omitempty"`
	Description *string           `json:"description,omitempty"`
	Fab         *FabData          `json:"fab,omitempty"`
	AmbientSet  bool              `json:"-"` // true if "ambient" key was present at all (even as null)
	Ambient     []AmbientItemData `json:"-"`
}

type wireStatusData struct {
	Badges      []Badge           `json:"badges"`
	Chips       []Chip            `json:"chips"`
	Description *string           `json:"description"`
	Fab         *FabData          `json:"fab"`
	Ambient     json.RawMessage   `json:"ambient"`
}

// UnmarshalJSON distinguishes "ambient" absent (no update), present+null
// (clear ambient), and present+array (replace ambient) per spec §4.I.
func (s *StatusData) UnmarshalJSON(data []byte) error {
	var w wireStatusData
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Badges = w.Badges
	s.Chips = w.Chips
	s.Description = w.Description
	s.Fab = w.Fab

	if w.Ambient == nil {
		s.AmbientSet = false
		s.Ambient = nil
		return nil
	}
	s.AmbientSet = true
	if string(w.Ambient) == "null" {
		s.Ambient = []AmbientItemData{}
		return nil
	}
	return json.Unmarshal(w.Ambient, &s.Ambient)
}

// Badge is a small status indicator shown alongside a plugin's entry.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// Chip is a removable status tag shown alongside a plugin's entry.
type Chip struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
}

// FabData is a plugin's override for the floating-action-button surface.
type FabData struct {
	Badges   []Badge `json:"badges,omitempty"`
	Chips    []Chip  `json:"chips,omitempty"`
	Priority int     `json:"priority"`
	ShowFab  bool    `json:"showFab"`
}

// AmbientItemData is one ambient (non-search) notification a plugin emits.
type AmbientItemData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Badges      []Badge  `json:"badges,omitempty"`
	Chips       []Chip   `json:"chips,omitempty"`
	Actions     []Action `json:"actions,omitempty"`
	DurationMS  uint64   `json:"duration,omitempty"`
}

// Action is a named, plugin-invokable operation attached to a result, card,
// or ambient item.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

// PluginAction is a top-level action surfaced in the action bar while a
// plugin is active.
type PluginAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
	Key   string `json:"key,omitempty"`
}

// CardData is the rendered shape of a "card" response.
type CardData struct {
	Title              string          `json:"title"`
	Content            *string         `json:"content,omitempty"`
	Markdown           *string         `json:"markdown,omitempty"`
	Actions            []Action        `json:"actions,omitempty"`
	Kind               *string         `json:"kind,omitempty"`
	Blocks             []CardBlockData `json:"blocks,omitempty"`
	MaxHeight          *uint32         `json:"maxHeight,omitempty"`
	ShowDetails        *bool           `json:"showDetails,omitempty"`
	AllowToggleDetails *bool           `json:"allowToggleDetails,omitempty"`
}

// CardBlockData is one block within a card's body.
type CardBlockData struct {
	Kind    string `json:"kind"` // "pill" | "separator" | "message" | "note"
	Text    string `json:"text,omitempty"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// FormData is the rendered shape of a "form" response.
type FormData struct {
	Title       string      `json:"title"`
	Fields      []FormField `json:"fields"`
	SubmitLabel string      `json:"submitLabel"`
	CancelLabel *string     `json:"cancelLabel,omitempty"`
	Context     *string     `json:"context,omitempty"`
	LiveUpdate  bool        `json:"liveUpdate"`
}

// FormField is one input in a form response.
type FormField struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	FieldType    string       `json:"type,omitempty"`
	Placeholder  *string      `json:"placeholder,omitempty"`
	DefaultValue *string      `json:"defaultValue,omitempty"`
	Required     bool         `json:"required"`
	Options      []FormOption `json:"options,omitempty"`
	Hint         *string      `json:"hint,omitempty"`
	Rows         *uint32      `json:"rows,omitempty"`
	Min          *float64     `json:"min,omitempty"`
	Max          *float64     `json:"max,omitempty"`
	Step         *float64     `json:"step,omitempty"`
}

// FormOption is one selectable choice for a select/radio form field.
type FormOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ExecuteData carries every possible execute-style side effect a plugin may
// request in a single response; each non-null field becomes its own
// Execute core update, in the order launch, openUrl, open, copy, typeText,
// notify, sound.
type ExecuteData struct {
	Launch   *string `json:"launch,omitempty"`
	Copy     *string `json:"copy,omitempty"`
	TypeText *string `json:"typeText,omitempty"`
	OpenURL  *string `json:"openUrl,omitempty"`
	Open     *string `json:"open,omitempty"`
	Notify   *string `json:"notify,omitempty"`
	Sound    *string `json:"sound,omitempty"`
	Close    *bool   `json:"close,omitempty"`
}

// UpdateItem is a partial patch to an already-displayed result item.
type UpdateItem struct {
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"-"`
}

// ImageItem / GridItem are browser entries for the image/grid browser
// response kinds.
type ImageItem struct {
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

type GridItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
}

// ImageBrowserInner mirrors the legacy nested imageBrowser object some
// plugins still emit alongside top-level images/directory fields.
type ImageBrowserInner struct {
	Directory *string     `json:"directory,omitempty"`
	Images    []ImageItem `json:"images,omitempty"`
}

// Kind tags which variant a PluginResponse carries; PluginResponse's
// UnmarshalJSON sets this from the wire "type" field.
type Kind string

const (
	KindResults      Kind = "results"
	KindExecute      Kind = "execute"
	KindCard         Kind = "card"
	KindForm         Kind = "form"
	KindIndex        Kind = "index"
	KindStatus       Kind = "status"
	KindUpdate       Kind = "update"
	KindError        Kind = "error"
	KindPrompt       Kind = "prompt"
	KindMatch        Kind = "match"
	KindNoop         Kind = "noop"
	KindImageBrowser Kind = "imageBrowser"
	KindGridBrowser  Kind = "gridBrowser"
)

// PluginResponse is a plugin's decoded stdout/socket response. Fields are a
// superset union of every Kind's payload; only the ones relevant to Kind
// are populated.
type PluginResponse struct {
	Kind Kind

	// results
	Items            []ResultItem  `json:"-"`
	InputMode        *string       `json:"-"`
	Status           *StatusData   `json:"-"`
	Context          *string       `json:"-"`
	Placeholder      *string       `json:"-"`
	ClearInput       bool          `json:"-"`
	NavigateForward  *bool         `json:"-"`
	PluginActions    []PluginAction `json:"-"`
	NavigationDepth  *uint32       `json:"-"`
	Activate         bool          `json:"-"`

	// execute
	Execute *ExecuteData `json:"-"`

	// card / form
	Card *CardData `json:"-"`
	Form *FormData `json:"-"`

	// index
	IndexMode   *string  `json:"-"`
	IndexRemove []string `json:"-"`

	// update
	UpdateItems []UpdateItem `json:"-"`

	// error
	Message string `json:"-"`

	// prompt
	PromptText string `json:"-"`

	// match
	MatchResult *ResultItem `json:"-"`

	// imageBrowser / gridBrowser
	Images       []ImageItem        `json:"-"`
	Title        *string            `json:"-"`
	Directory    *string            `json:"-"`
	ImageBrowser *ImageBrowserInner `json:"-"`
	Columns      *uint32            `json:"-"`
	GridItems    []GridItem         `json:"-"`
	Actions      []Action           `json:"-"`
}

// wireResponse is the flat JSON shape every field lives in, tagged by
// "type"; UnmarshalJSON projects it into the typed PluginResponse above.
type wireResponse struct {
	Type string `json:"type"`

	Items           json.RawMessage `json:"items"`
	Results         []ResultItem    `json:"results"`
	Prepend         bool           `json:"prepend"`
	InputMode       *string        `json:"inputMode"`
	Status          *StatusData    `json:"status"`
	Context         *string        `json:"context"`
	Placeholder     *string        `json:"placeholder"`
	ClearInput      bool           `json:"clearInput"`
	NavigateForward *bool          `json:"navigateForward"`
	PluginActions   []PluginAction `json:"pluginActions"`
	NavigationDepth *uint32        `json:"navigationDepth"`
	Activate        bool           `json:"activate"`

	Launch   *string `json:"launch"`
	Copy     *string `json:"copy"`
	TypeText *string `json:"typeText"`
	OpenURL  *string `json:"openUrl"`
	Open     *string `json:"open"`
	Notify   *string `json:"notify"`
	Sound    *string `json:"sound"`
	Close    *bool   `json:"close"`

	Card *CardData `json:"card"`
	Form *FormData `json:"form"`

	Mode   *string  `json:"mode"`
	Remove []string `json:"remove"`

	UpdateItems []UpdateItem `json:"updateItems"`

	Message string `json:"message"`

	Prompt *struct {
		Text        string  `json:"text"`
		Placeholder *string `json:"placeholder"`
	} `json:"prompt"`

	Result *ResultItem `json:"result"`

	Images       []ImageItem        `json:"images"`
	Title        *string            `json:"title"`
	Directory    *string            `json:"directory"`
	ImageBrowser *ImageBrowserInner `json:"imageBrowser"`
	Columns      *uint32            `json:"columns"`
	Actions      []Action           `json:"actions"`
}

func (w *wireResponse) decodeItems() []ResultItem {
	if len(w.Items) == 0 {
		return nil
	}
	var items []ResultItem
	if err := json.Unmarshal(w.Items, &items); err != nil {
		return nil
	}
	return items
}

func (w *wireResponse) decodeGridItems() []GridItem {
	if len(w.Items) == 0 {
		return nil
	}
	var items []GridItem
	if err := json.Unmarshal(w.Items, &items); err != nil {
		return nil
	}
	return items
}

// UnmarshalJSON decodes the tagged-union wire format into PluginResponse.
func (r *PluginResponse) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = PluginResponse{Kind: Kind(w.Type)}

	switch r.Kind {
	case KindResults:
		r.Items = w.decodeItems()
		if r.Items == nil {
			r.Items = w.Results
		}
		r.InputMode = w.InputMode
		r.Status = w.Status
		r.Context = w.Context
		r.Placeholder = w.Placeholder
		r.ClearInput = w.ClearInput
		r.NavigateForward = w.NavigateForward
		r.PluginActions = w.PluginActions
		r.NavigationDepth = w.NavigationDepth
		r.Activate = w.Activate
	case KindExecute:
		r.Execute = &ExecuteData{
			Launch: w.Launch, Copy: w.Copy, TypeText: w.TypeText,
			OpenURL: w.OpenURL, Open: w.Open, Notify: w.Notify, Sound: w.Sound, Close: w.Close,
		}
	case KindCard:
		r.Card = w.Card
		r.Status = w.Status
		r.Context = w.Context
	case KindForm:
		r.Form = w.Form
		r.Context = w.Context
		r.NavigateForward = w.NavigateForward
	case KindIndex:
		r.Items = w.decodeItems()
		r.IndexMode = w.Mode
		r.IndexRemove = w.Remove
		r.Status = w.Status
	case KindStatus:
		r.Status = w.Status
	case KindUpdate:
		r.UpdateItems = w.UpdateItems
		r.Status = w.Status
	case KindError:
		r.Message = w.Message
	case KindPrompt:
		if w.Prompt != nil {
			r.PromptText = w.Prompt.Text
			r.Placeholder = w.Prompt.Placeholder
		}
	case KindMatch:
		r.MatchResult = w.Result
	case KindImageBrowser:
		r.Images = w.Images
		r.Title = w.Title
		r.Directory = w.Directory
		r.ImageBrowser = w.ImageBrowser
	case KindGridBrowser:
		r.GridItems = w.decodeGridItems()
		r.Title = w.Title
		r.Columns = w.Columns
		r.Actions = w.Actions
	case KindNoop:
	}

	return nil
}
