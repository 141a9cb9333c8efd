package render

import (
	"golang.org/x/text/language"
)

// PNAFlag is the Chrome/Edge flag that disables Private Network Access
// checks for insecure requests.
const PNAFlag = "chrome://flags/#block-insecure-private-network-requests"

// Catalog holds the user-facing copy for one language.
type Catalog struct {
	Tag        language.Tag
	TimeLayout string

	Title  string
	Footer string

	FormTitle           string
	URLLabel            string
	IntervalLabel       string
	StartButton         string
	StopButton          string
	IntervalTooShort    string
	URLRequired         string
	ConfigLockedWarning string

	Stopped string

	ErrorTitle       string
	CausesTitle      string
	CauseAuth        string
	CausePNA         string
	CauseWrongURL    string
	DetectedCause    string
	VerifyLabel      string
	VerifyHint       string
	RemedyTitle      string
	RemedyIntro      string
	RemedyCopy       string
	RemedyPaste      string
	RemedySetDisable string

	Online  string
	Offline string
	Updated string

	MixedTitle string
	MixedBody  string
	MixedSteps []string
	InfoTitle  string
	InfoBody   string

	// Causes describes relay-mode failure causes, keyed by cause name.
	Causes map[string]string
}

var russian = &Catalog{
	Tag:        language.MustParse("ru-RU"),
	TimeLayout: "15:04:05",

	Title:  "IP Камера",
	Footer: "Обновление изображения из локальной сети",

	FormTitle:           "Настройки потока",
	URLLabel:            "URL камеры",
	IntervalLabel:       "Период обновления (сек)",
	StartButton:         "Запустить поток",
	StopButton:          "Остановить поток",
	IntervalTooShort:    "Интервал должен быть не менее 0.1 секунды",
	URLRequired:         "Укажите URL камеры",
	ConfigLockedWarning: "Остановите поток, чтобы изменить настройки",

	Stopped: "Поток остановлен",

	ErrorTitle:       "Ошибка загрузки",
	CausesTitle:      "Возможные причины:",
	CauseAuth:        "Камера требует ввода логина/пароля.",
	CausePNA:         "Браузер блокирует доступ к локальной сети (Private Network Access).",
	CauseWrongURL:    "URL указан неверно.",
	DetectedCause:    "Обнаружено:",
	VerifyLabel:      "1. Проверить ссылку в новой вкладке",
	VerifyHint:       "(Если откроется - вернитесь сюда, поток может заработать)",
	RemedyTitle:      "Для Chrome/Edge:",
	RemedyIntro:      "Если ссылка открывается в новой вкладке, но здесь ошибка сохраняется, отключите защиту локальной сети:",
	RemedyCopy:       "1. Скопируйте:",
	RemedyPaste:      "2. Вставьте в адресную строку новой вкладки.",
	RemedySetDisable: "3. Установите значение Disabled.",

	Online:  "Онлайн",
	Offline: "Оффлайн",
	Updated: "Обновлено:",

	MixedTitle: "Внимание: HTTPS",
	MixedBody:  "Вы пытаетесь открыть HTTP ссылку на защищенном HTTPS сайте. Браузер заблокирует это соединение (\"Mixed Content\").",
	MixedSteps: []string{
		"Нажмите на значок 🔒 или 🛡️ в адресной строке браузера.",
		"Выберите «Настройки сайта» или «Разрешения».",
		"Найдите «Небезопасный контент» (Insecure Content) и выберите «Разрешить».",
	},
	InfoTitle: "Инфо",
	InfoBody:  "Для просмотра локальных камер (192.168.x.x) убедитесь, что вы находитесь в той же сети.",

	Causes: map[string]string{
		"invalid_url":   "некорректный URL",
		"timeout":       "камера не ответила вовремя",
		"unreachable":   "камера недоступна",
		"auth_required": "требуется авторизация",
		"http_status":   "камера вернула ошибку HTTP",
		"not_image":     "ответ не является изображением",
		"read_failed":   "соединение прервано при чтении кадра",
		"too_large":     "кадр слишком большой",
		"canceled":      "запрос отменён",
		"load_failed":   "браузер не смог загрузить изображение",
		"loader_panic":  "внутренняя ошибка загрузчика",
	},
}

var english = &Catalog{
	Tag:        language.AmericanEnglish,
	TimeLayout: "3:04:05 PM",

	Title:  "IP Camera",
	Footer: "Refreshing a snapshot from the local network",

	FormTitle:           "Stream settings",
	URLLabel:            "Camera URL",
	IntervalLabel:       "Refresh period (sec)",
	StartButton:         "Start stream",
	StopButton:          "Stop stream",
	IntervalTooShort:    "The interval must be at least 0.1 seconds",
	URLRequired:         "Enter the camera URL",
	ConfigLockedWarning: "Stop the stream to change the settings",

	Stopped: "Stream stopped",

	ErrorTitle:       "Failed to load",
	CausesTitle:      "Possible causes:",
	CauseAuth:        "The camera requires a login and password.",
	CausePNA:         "The browser blocks access to the local network (Private Network Access).",
	CauseWrongURL:    "The URL is wrong.",
	DetectedCause:    "Detected:",
	VerifyLabel:      "1. Check the link in a new tab",
	VerifyHint:       "(If it opens, come back here: the stream may start working)",
	RemedyTitle:      "For Chrome/Edge:",
	RemedyIntro:      "If the link opens in a new tab but the error persists here, turn off local network protection:",
	RemedyCopy:       "1. Copy:",
	RemedyPaste:      "2. Paste it into the address bar of a new tab.",
	RemedySetDisable: "3. Set it to Disabled.",

	Online:  "Online",
	Offline: "Offline",
	Updated: "Updated:",

	MixedTitle: "Warning: HTTPS",
	MixedBody:  "You are opening an HTTP link on a secure HTTPS site. The browser will block this connection (\"Mixed Content\").",
	MixedSteps: []string{
		"Click the 🔒 or 🛡️ icon in the browser's address bar.",
		"Choose \"Site settings\" or \"Permissions\".",
		"Find \"Insecure content\" and choose \"Allow\".",
	},
	InfoTitle: "Info",
	InfoBody:  "To view local cameras (192.168.x.x), make sure you are on the same network.",

	Causes: map[string]string{
		"invalid_url":   "invalid URL",
		"timeout":       "the camera did not answer in time",
		"unreachable":   "the camera is unreachable",
		"auth_required": "authentication required",
		"http_status":   "the camera returned an HTTP error",
		"not_image":     "the response is not an image",
		"read_failed":   "the connection broke while reading the frame",
		"too_large":     "the frame is too large",
		"canceled":      "the request was cancelled",
		"load_failed":   "the browser could not load the image",
		"loader_panic":  "internal loader error",
	},
}

// catalogs lists supported languages; the first is the fallback.
var catalogs = []*Catalog{russian, english}

var matcher = language.NewMatcher(func() []language.Tag {
	tags := make([]language.Tag, len(catalogs))
	for i, c := range catalogs {
		tags[i] = c.Tag
	}
	return tags
}())

// DefaultLocale is the locale used when nothing matches.
var DefaultLocale = russian.Tag

// CatalogFor picks the catalog for the configured locale, falling back to the
// request's Accept-Language header and then to Russian.
func CatalogFor(locale, acceptLanguage string) *Catalog {
	if locale != "" {
		if tag, err := language.Parse(locale); err == nil {
			if _, idx, conf := matcher.Match(tag); conf != language.No {
				return catalogs[idx]
			}
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			if _, idx, conf := matcher.Match(tags...); conf != language.No {
				return catalogs[idx]
			}
		}
	}
	return catalogs[0]
}

// ValidLocale reports whether locale parses as a BCP 47 tag.
func ValidLocale(locale string) bool {
	_, err := language.Parse(locale)
	return err == nil
}

// CauseText describes a failure cause, or returns "" for unknown causes.
func (c *Catalog) CauseText(cause string) string {
	return c.Causes[cause]
}

// Lang returns the catalog's BCP 47 tag as a string.
func (c *Catalog) Lang() string {
	return c.Tag.String()
}
