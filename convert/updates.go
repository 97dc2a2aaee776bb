package convert

// UpdateKind tags a CoreUpdate's variant for the daemon's broadcast
// encoder and for tests that assert on emitted sequences.
type UpdateKind string

const (
	UpdateBusy                UpdateKind = "busy"
	UpdateActivatePlugin      UpdateKind = "activatePlugin"
	UpdateResults             UpdateKind = "results"
	UpdateResultsUpdate       UpdateKind = "resultsUpdate"
	UpdateInputModeChanged    UpdateKind = "inputModeChanged"
	UpdateContextChanged      UpdateKind = "contextChanged"
	UpdatePlaceholder         UpdateKind = "placeholder"
	UpdateClearInput          UpdateKind = "clearInput"
	UpdatePluginActionsUpdate UpdateKind = "pluginActionsUpdate"
	UpdatePluginStatusUpdate  UpdateKind = "pluginStatusUpdate"
	UpdateAmbientUpdate       UpdateKind = "ambientUpdate"
	UpdateFabUpdate           UpdateKind = "fabUpdate"
	UpdateNavigationDepth     UpdateKind = "navigationDepthChanged"
	UpdateExecute             UpdateKind = "execute"
	UpdateClose               UpdateKind = "close"
	UpdateCard                UpdateKind = "card"
	UpdateForm                UpdateKind = "form"
	UpdateNavigateForward     UpdateKind = "navigateForward"
	UpdateError               UpdateKind = "error"
	UpdateImageBrowser        UpdateKind = "imageBrowser"
	UpdateGridBrowser         UpdateKind = "gridBrowser"
)

// CoreUpdate is one unit the daemon applies to core state and/or forwards
// to the active UI, in the exact order the translator emits them.
type CoreUpdate struct {
	Kind UpdateKind `json:"kind"`

	Busy bool `json:"busy,omitempty"`

	PluginID string `json:"pluginId,omitempty"` // ActivatePlugin, Results (from a plugin), PluginStatusUpdate, AmbientUpdate

	Results         []ResultItem `json:"results,omitempty"`
	Placeholder     *string      `json:"placeholder,omitempty"`
	ClearInputValue bool         `json:"clearInput,omitempty"`
	InputMode       *string      `json:"inputMode,omitempty"`
	Context         *string      `json:"context,omitempty"`
	NavigateForward *bool        `json:"navigateForward,omitempty"`

	Patches []UpdateItem `json:"patches,omitempty"`

	PluginActions []PluginAction `json:"pluginActions,omitempty"`

	Status *PluginStatus `json:"status,omitempty"`
	Fab    *FabOverride  `json:"fab,omitempty"`

	AmbientItems []AmbientItem `json:"ambientItems,omitempty"`

	NavigationDepth *uint32 `json:"navigationDepth,omitempty"`

	ExecuteAction *ExecuteAction `json:"action,omitempty"`

	Card *CardData `json:"card,omitempty"`
	Form *FormData `json:"form,omitempty"`

	Message string `json:"message,omitempty"`

	ImageBrowser *ImageBrowserData `json:"imageBrowser,omitempty"`
	GridBrowser  *GridBrowserData  `json:"gridBrowser,omitempty"`
}

// PluginStatus is a plugin's cached badges/chips/description/FAB/ambient
// state, as displayed by the active UI.
type PluginStatus struct {
	Badges      []Badge      `json:"badges,omitempty"`
	Chips       []Chip       `json:"chips,omitempty"`
	Description *string      `json:"description,omitempty"`
	Fab         *FabOverride `json:"fab,omitempty"`
	Ambient     []AmbientItem `json:"ambient,omitempty"`
}

// FabOverride is a plugin's bid to control the floating-action-button.
type FabOverride struct {
	Badges   []Badge `json:"badges,omitempty"`
	Chips    []Chip  `json:"chips,omitempty"`
	Priority int     `json:"priority,omitempty"`
	ShowFab  bool    `json:"showFab,omitempty"`
}

// AmbientItem is an ambient notification enriched with its owning plugin id.
type AmbientItem struct {
	PluginID    string   `json:"pluginId"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Badges      []Badge  `json:"badges,omitempty"`
	Chips       []Chip   `json:"chips,omitempty"`
	Actions     []Action `json:"actions,omitempty"`
	DurationMS  uint64   `json:"durationMs,omitempty"`
}

// ExecuteAction is one concrete side effect (launch/open/copy/...) a plugin
// requested.
type ExecuteAction struct {
	Kind  string `json:"kind"` // "launch" | "openUrl" | "open" | "copy" | "typeText" | "notify" | "playSound"
	Value string `json:"value"`
}

// ImageBrowserData / GridBrowserData are the rendered shapes of their
// respective browser responses.
type ImageBrowserData struct {
	Directory *string     `json:"directory,omitempty"`
	Images    []ImageItem `json:"images,omitempty"`
	Title     *string     `json:"title,omitempty"`
}

type GridBrowserData struct {
	Items   []GridItem `json:"items,omitempty"`
	Title   *string    `json:"title,omitempty"`
	Columns *uint32    `json:"columns,omitempty"`
	Actions []Action   `json:"actions,omitempty"`
}

const (
	defaultPluginIcon = "application-x-executable"
	defaultVerbSelect = "select"
)

// ToUpdates converts a plugin's decoded response into the ordered core
// update stream, per spec §4.I. Busy{false} is always prepended; an
// Activate flag on a results response inserts ActivatePlugin before it.
func ToUpdates(pluginID string, resp PluginResponse) []CoreUpdate {
	updates := []CoreUpdate{{Kind: UpdateBusy, Busy: false}}

	switch resp.Kind {
	case KindResults:
		updates = handleResults(pluginID, updates, resp)
	case KindExecute:
		updates = handleExecute(updates, resp.Execute)
	case KindCard:
		updates = handleCard(pluginID, updates, resp)
	case KindForm:
		updates = handleForm(updates, resp)
	case KindIndex:
		if resp.Status != nil {
			updates = append(updates, processStatus(pluginID, *resp.Status)...)
		}
	case KindStatus:
		if resp.Status != nil {
			updates = append(updates, processStatus(pluginID, *resp.Status)...)
		}
	case KindUpdate:
		updates = handleUpdate(pluginID, updates, resp)
	case KindError:
		updates = append(updates, CoreUpdate{Kind: UpdateError, Message: resp.Message})
	case KindPrompt:
		text := resp.PromptText
		updates = append(updates, CoreUpdate{Kind: UpdatePlaceholder, Placeholder: &text})
	case KindMatch:
		var results []ResultItem
		if resp.MatchResult != nil {
			results = applyResultDefaults(pluginID, []ResultItem{*resp.MatchResult})
		}
		updates = append(updates, CoreUpdate{Kind: UpdateResults, PluginID: pluginID, Results: results})
	case KindNoop:
		// Busy{false} prefix only.
	case KindImageBrowser:
		updates = append(updates, handleImageBrowser(resp))
	case KindGridBrowser:
		updates = append(updates, CoreUpdate{
			Kind: UpdateGridBrowser,
			GridBrowser: &GridBrowserData{
				Items:   resp.GridItems,
				Title:   resp.Title,
				Columns: resp.Columns,
				Actions: resp.Actions,
			},
		})
	}

	return updates
}

func applyResultDefaults(pluginID string, items []ResultItem) []ResultItem {
	out := make([]ResultItem, len(items))
	for i, it := range items {
		if it.Icon == "" {
			it.Icon = defaultPluginIcon
		}
		if it.Verb == "" {
			it.Verb = defaultVerbSelect
		}
		out[i] = it
	}
	_ = pluginID // the plugin id travels on the enclosing Results update's PluginID
	return out
}

func handleResults(pluginID string, updates []CoreUpdate, resp PluginResponse) []CoreUpdate {
	if resp.Activate {
		updates = append([]CoreUpdate{{Kind: UpdateActivatePlugin, PluginID: pluginID}}, updates...)
	}

	if len(resp.Items) > 0 {
		first := resp.Items[0]
		if first.OpenURL != "" {
			return append(updates, CoreUpdate{Kind: UpdateExecute, ExecuteAction: &ExecuteAction{Kind: "openUrl", Value: first.OpenURL}})
		}
		if first.Copy != "" {
			return append(updates, CoreUpdate{Kind: UpdateExecute, ExecuteAction: &ExecuteAction{Kind: "copy", Value: first.Copy}})
		}
	}

	updates = append(updates, CoreUpdate{
		Kind:            UpdateResults,
		PluginID:        pluginID,
		Results:         applyResultDefaults(pluginID, resp.Items),
		NavigateForward: resp.NavigateForward,
	})

	if resp.InputMode != nil {
		updates = append(updates, CoreUpdate{Kind: UpdateInputModeChanged, InputMode: resp.InputMode})
	}
	if resp.Context != nil {
		updates = append(updates, CoreUpdate{Kind: UpdateContextChanged, Context: resp.Context})
	}
	if resp.Placeholder != nil {
		updates = append(updates, CoreUpdate{Kind: UpdatePlaceholder, Placeholder: resp.Placeholder})
	}
	if resp.ClearInput {
		updates = append(updates, CoreUpdate{Kind: UpdateClearInput})
	}
	if len(resp.PluginActions) > 0 {
		updates = append(updates, CoreUpdate{Kind: UpdatePluginActionsUpdate, PluginActions: resp.PluginActions})
	}
	if resp.Status != nil {
		updates = append(updates, processStatus(pluginID, *resp.Status)...)
	}
	if resp.NavigationDepth != nil {
		updates = append(updates, CoreUpdate{Kind: UpdateNavigationDepth, NavigationDepth: resp.NavigationDepth})
	}

	return updates
}

func handleExecute(updates []CoreUpdate, data *ExecuteData) []CoreUpdate {
	if data == nil {
		return updates
	}
	type action struct {
		kind  string
		value *string
	}
	for _, a := range []action{
		{"launch", data.Launch},
		{"openUrl", data.OpenURL},
		{"open", data.Open},
		{"copy", data.Copy},
		{"typeText", data.TypeText},
		{"notify", data.Notify},
		{"playSound", data.Sound},
	} {
		if a.value != nil {
			updates = append(updates, CoreUpdate{Kind: UpdateExecute, ExecuteAction: &ExecuteAction{Kind: a.kind, Value: *a.value}})
		}
	}
	if data.Close != nil && *data.Close {
		updates = append(updates, CoreUpdate{Kind: UpdateClose})
	}
	return updates
}

func handleCard(pluginID string, updates []CoreUpdate, resp PluginResponse) []CoreUpdate {
	if resp.Card == nil {
		return updates
	}
	card := *resp.Card
	if card.Markdown != nil && *card.Markdown == "" {
		card.Markdown = card.Content
	}
	updates = append(updates, CoreUpdate{Kind: UpdateCard, Card: &card, Context: resp.Context})
	if resp.Status != nil {
		updates = append(updates, processStatus(pluginID, *resp.Status)...)
	}
	return updates
}

func handleForm(updates []CoreUpdate, resp PluginResponse) []CoreUpdate {
	if resp.Form == nil {
		return updates
	}
	form := *resp.Form
	form.Context = resp.Context
	if resp.Context != nil {
		updates = append(updates, CoreUpdate{Kind: UpdateContextChanged, Context: resp.Context})
	}
	updates = append(updates, CoreUpdate{Kind: UpdateForm, Form: &form})
	if resp.NavigateForward != nil && *resp.NavigateForward {
		updates = append(updates, CoreUpdate{Kind: UpdateNavigateForward})
	}
	return updates
}

func handleUpdate(pluginID string, updates []CoreUpdate, resp PluginResponse) []CoreUpdate {
	if len(resp.UpdateItems) > 0 {
		updates = append(updates, CoreUpdate{Kind: UpdateResultsUpdate, Patches: resp.UpdateItems})
	}
	if resp.Status != nil {
		updates = append(updates, processStatus(pluginID, *resp.Status)...)
	}
	return updates
}

func handleImageBrowser(resp PluginResponse) CoreUpdate {
	images := resp.Images
	directory := resp.Directory
	if resp.ImageBrowser != nil {
		if directory == nil {
			directory = resp.ImageBrowser.Directory
		}
		images = append(images, resp.ImageBrowser.Images...)
	}
	return CoreUpdate{
		Kind: UpdateImageBrowser,
		ImageBrowser: &ImageBrowserData{
			Directory: directory,
			Images:    images,
			Title:     resp.Title,
		},
	}
}

func convertAmbientItem(pluginID string, item AmbientItemData) AmbientItem {
	return AmbientItem{
		PluginID:    pluginID,
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Icon:        item.Icon,
		Badges:      item.Badges,
		Chips:       item.Chips,
		Actions:     item.Actions,
		DurationMS:  item.DurationMS,
	}
}

// processStatus fans a status payload out into PluginStatusUpdate and/or
// AmbientUpdate core updates, per spec §4.I's ambient presence rules.
func processStatus(pluginID string, status StatusData) []CoreUpdate {
	var updates []CoreUpdate

	var fab *FabOverride
	if status.Fab != nil {
		fab = &FabOverride{
			Badges:   status.Fab.Badges,
			Chips:    status.Fab.Chips,
			Priority: status.Fab.Priority,
			ShowFab:  status.Fab.ShowFab,
		}
	}

	var ambientItems []AmbientItem
	if status.AmbientSet {
		ambientItems = make([]AmbientItem, 0, len(status.Ambient))
		for _, item := range status.Ambient {
			ambientItems = append(ambientItems, convertAmbientItem(pluginID, item))
		}
	}

	needsStatus := len(status.Badges) > 0 || len(status.Chips) > 0 || status.Description != nil

	if needsStatus {
		updates = append(updates, CoreUpdate{
			Kind:     UpdatePluginStatusUpdate,
			PluginID: pluginID,
			Status: &PluginStatus{
				Badges:      status.Badges,
				Chips:       status.Chips,
				Description: status.Description,
				Fab:         fab,
				Ambient:     ambientItems,
			},
		})
	}
	if status.AmbientSet {
		updates = append(updates, CoreUpdate{Kind: UpdateAmbientUpdate, PluginID: pluginID, AmbientItems: ambientItems})
	}
	if fab != nil {
		updates = append(updates, CoreUpdate{Kind: UpdateFabUpdate, Fab: fab})
	}

	return updates
}
