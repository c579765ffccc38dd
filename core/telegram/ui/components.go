package ui

import tele "gopkg.in/telebot.v4"

// NewSimpleArticleResult creates an ArticleResult with given ID, title and content.
func NewSimpleArticleResult(id, title, text string) *tele.ArticleResult {
	result := &tele.ArticleResult{
		Title: title,
		Text:  text,
	}
	result.SetResultID(id)
	return result
}

// NewArticleResult is NewSimpleArticleResult with a description line
// and HTML parse mode for the message it inserts.
func NewArticleResult(id, title, description, html string) *tele.ArticleResult {
	result := NewSimpleArticleResult(id, title, html)
	result.Description = description
	result.SetParseMode(tele.ModeHTML)
	return result
}
