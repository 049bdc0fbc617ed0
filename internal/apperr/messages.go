package apperr

import (
	"bytes"
	"text/template"

	"golang.org/x/text/language"
)

// ReasonSessionLimit is the "reason" metadata of a CONFLICT raised because
// no more sheets can be opened.
const ReasonSessionLimit = "session_limit"

var supported = []language.Tag{
	language.Japanese,
	language.English,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[language.Tag]map[Code]string{
	language.Japanese: {
		CodeUnknown:           "予期しないエラーが発生しました。",
		CodeParseFailure:      "ファイルの読み込みに失敗しました。形式が正しいか確認してください。",
		CodeFetchFailure:      "通信に失敗しました。時間をおいて再度お試しください。",
		CodeAuthFailure:       "Googleへのログインが必要です。再度ログインしてください。",
		CodeConfigMissing:     "この機能は現在利用できません（設定がありません）。",
		CodeValidationFailure: "入力内容に問題があります。{{with .detail}}（{{.}}）{{end}}",
		CodeNotFound:          "キャラクターシートが見つかりません。",
		CodeConflict:          `{{if eq (index . "reason") "session_limit"}}開いているシートが多すぎます。不要なシートを閉じてから再度お試しください。{{else}}保存処理が進行中です。完了してから再度お試しください。{{end}}`,
		CodeReadOnly:          "共有されたシートは編集できません。",
	},
	language.English: {
		CodeUnknown:           "An unexpected error occurred.",
		CodeParseFailure:      "Failed to read the file. Check that it is a character sheet save.",
		CodeFetchFailure:      "Network request failed. Please try again later.",
		CodeAuthFailure:       "Please sign in to Google again.",
		CodeConfigMissing:     "This feature is not available (configuration missing).",
		CodeValidationFailure: "The sheet contains invalid data.{{with .detail}} ({{.}}){{end}}",
		CodeNotFound:          "Character sheet not found.",
		CodeConflict:          `{{if eq (index . "reason") "session_limit"}}Too many sheets are open. Close one and try again.{{else}}A save is already in progress. Try again when it finishes.{{end}}`,
		CodeReadOnly:          "Shared sheets are read-only.",
	},
}

// ResolveLocale picks the closest supported locale for an Accept-Language value.
//
// Postcondition: Returns Japanese when acceptLanguage is empty or unparseable.
func ResolveLocale(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.Japanese
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// UserMessage renders the user-facing notification for err in the locale
// best matching acceptLanguage.
func UserMessage(err error, acceptLanguage string) string {
	code := CodeOf(err)
	catalog := catalogs[ResolveLocale(acceptLanguage)]
	tmpl, ok := catalog[code]
	if !ok {
		tmpl = catalog[CodeUnknown]
	}
	metadata := MetadataOf(err)
	if metadata == nil {
		metadata = map[string]string{}
	}
	t, perr := template.New("msg").Parse(tmpl)
	if perr != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}
