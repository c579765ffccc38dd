package keyboard

import (
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn describes an inline callback button before it is bound to a markup.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// URLBtn returns an InlineBtn rendered as a link instead of a callback.
// Unique is left empty; InlineButtonsRows recognises it by the "url:" prefix.
func URLBtn(text, url string) InlineBtn {
	return InlineBtn{Text: text, Data: urlPrefix + url}
}

const (
	defaultCancelButtonText = "❌ Cancel"
	urlPrefix               = "url:"
)

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard from rows of text.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			if btn.Unique == "" && len(btn.Data) > len(urlPrefix) && btn.Data[:len(urlPrefix)] == urlPrefix {
				r[j] = *markup.URL(btn.Text, btn.Data[len(urlPrefix):]).Inline()
				continue
			}
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// InlineButtonsNPerRow splits a flat list of buttons into rows with up to n buttons per row.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	if n < 1 {
		n = 1
	}
	var rows [][]InlineBtn
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return InlineButtonsRows(rows...)
}

// PagerRow returns prev/next buttons for a paged list; empty when there is a single page.
// The payload is the target offset.
func PagerRow(unique string, offset, pageSize int, hasMore bool) []InlineBtn {
	var row []InlineBtn
	if offset > 0 {
		prev := max(offset-pageSize, 0)
		row = append(row, InlineBtn{Text: "◀️", Unique: unique, Data: strconv.Itoa(prev)})
	}
	if hasMore {
		row = append(row, InlineBtn{Text: "▶️", Unique: unique, Data: strconv.Itoa(offset + pageSize)})
	}
	return row
}

// CancelButton returns the inline cancel button bound to action.
func CancelButton(action string) InlineBtn {
	return InlineBtn{Text: defaultCancelButtonText, Unique: action, Data: "cancel"}
}

// SingleCancelMarkup creates an inline keyboard with a single cancel button.
func SingleCancelMarkup(action string) *tele.ReplyMarkup {
	return InlineButtonsRows([]InlineBtn{CancelButton(action)})
}
