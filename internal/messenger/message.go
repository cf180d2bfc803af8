package messenger

import "encoding/json"

// Type identifies a cross-context message. The values are shared with
// the extension and web-app sides, so they never change casing.
type Type string

const (
	TypeExtensionLoaded Type = "EXTENSION_LOADED"

	TypeNewBookmark      Type = "NEW_BOOKMARK_FOR_AI_CLASSIFICATION"
	TypeNewBookmarkBatch Type = "NEW_BOOKMARK_FOR_AI_CLASSIFICATION_BATCH"

	TypeFolderClassifiedBookmark Type = "MARKHUB_CHROME_SYNC_FOLDER_CLASSIFIED_BOOKMARK"
	TypeRequestPendingBookmarks  Type = "REQUEST_PENDING_BOOKMARKS_FROM_EXTENSION"

	TypeRequestPageContent Type = "REQUEST_PAGE_CONTENT"

	TypeToastReady          Type = "TOAST_READY"
	TypeToastShowLoading    Type = "TOAST_SHOW_LOADING"
	TypeToastShowSuggestion Type = "TOAST_SHOW_SUGGESTION"
	TypeToastShowError      Type = "TOAST_SHOW_ERROR"
	TypeToastHide           Type = "TOAST_HIDE"

	TypeUserActionConfirm Type = "USER_ACTION_CONFIRM"
	TypeUserActionReject  Type = "USER_ACTION_REJECT"
	TypeUserActionCancel  Type = "USER_ACTION_CANCEL"
)

// Message is the tagged-union envelope carried across context
// boundaries. Payload stays raw until the receiver knows the type.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage marshals payload into an envelope. A nil payload yields
// an envelope with no payload field.
func NewMessage(t Type, payload any) (Message, error) {
	m := Message{Type: t}
	if payload == nil {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	m.Payload = raw
	return m, nil
}

// ToastPayload carries the fields the on-page bubble renders.
type ToastPayload struct {
	URL             string   `json:"url,omitempty"`
	Title           string   `json:"title,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	SuggestedFolder string   `json:"suggestedFolder,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func LoadingToast(url, title string) Message {
	msg, _ := NewMessage(TypeToastShowLoading, ToastPayload{URL: url, Title: title})
	return msg
}

func SuggestionToast(url, title string, tags []string, folder string) Message {
	msg, _ := NewMessage(TypeToastShowSuggestion, ToastPayload{
		URL:             url,
		Title:           title,
		Tags:            tags,
		SuggestedFolder: folder,
	})
	return msg
}

func ErrorToast(url, errMsg string) Message {
	msg, _ := NewMessage(TypeToastShowError, ToastPayload{URL: url, Error: errMsg})
	return msg
}

// IsUIState reports whether the message drives the on-page bubble.
func (m Message) IsUIState() bool {
	switch m.Type {
	case TypeToastShowLoading, TypeToastShowSuggestion, TypeToastShowError:
		return true
	}
	return false
}

// IsTerminal reports whether the message is a final bubble state. A
// terminal message supersedes every earlier UI-state message.
func (m Message) IsTerminal() bool {
	return m.Type == TypeToastShowSuggestion || m.Type == TypeToastShowError
}

// IsLoading reports whether the message is the in-progress bubble state.
func (m Message) IsLoading() bool {
	return m.Type == TypeToastShowLoading
}
