package preferences

import (
	"strings"

	"golang.org/x/text/language"
)

// LanguageInfo is an allowed language code with its display name in its own
// script.
type LanguageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languages = []LanguageInfo{
	{"en", "English"},
	{"hi", "हिन्दी"},
	{"bn", "বাংলা"},
	{"es", "Español"},
	{"fr", "Français"},
	{"de", "Deutsch"},
	{"zh", "中文"},
	{"mr", "मराठी"},
	{"te", "తెలుగు"},
	{"ta", "தமிழ்"},
	{"gu", "ગુજરાતી"},
	{"kn", "ಕನ್ನಡ"},
	{"ml", "മലയാളം"},
	{"or", "ଓଡ଼ିଆ"},
	{"pa", "ਪੰਜਾਬੀ"},
	{"as", "অসমীয়া"},
	{"mai", "मैथिली"},
	{"sat", "ᱥᱟᱱᱛᱟᱲᱤ"},
	{"ks", "कॉशुर"},
	{"gom", "कोंकणी"},
	{"sd", "سنڌي"},
	{"doi", "डोगरी"},
	{"mni", "ꯃꯤꯇꯩꯂꯣꯟ"},
	{"sa", "संस्कृतम्"},
	{"ur", "اردو"},
	{"ne", "नेपाली"},
	{"si", "සිංහල"},
	{"ar", "العربية"},
	{"pt", "Português"},
	{"ru", "Русский"},
	{"ja", "日本語"},
	{"ko", "한국어"},
	{"it", "Italiano"},
	{"tr", "Türkçe"},
	{"vi", "Tiếng Việt"},
	{"pl", "Polski"},
	{"nl", "Nederlands"},
	{"th", "ไทย"},
	{"id", "Bahasa Indonesia"},
	{"fa", "فارسی"},
	{"el", "Ελληνικά"},
	{"he", "עברית"},
	{"sv", "Svenska"},
	{"no", "Norsk"},
	{"da", "Dansk"},
	{"fi", "Suomi"},
	{"ro", "Română"},
	{"hu", "Magyar"},
	{"cs", "Čeština"},
	{"sk", "Slovenčina"},
	{"uk", "Українська"},
	{"bg", "Български"},
	{"hr", "Hrvatski"},
	{"sr", "Српски"},
	{"ms", "Bahasa Melayu"},
	{"tl", "Filipino"},
	{"sw", "Kiswahili"},
	{"am", "አማርኛ"},
	{"zu", "isiZulu"},
	{"af", "Afrikaans"},
	{"ga", "Gaeilge"},
}

// AvailableLanguages returns the language allow-list with display names.
func AvailableLanguages() []LanguageInfo {
	return append([]LanguageInfo(nil), languages...)
}

func isLanguage(code string) bool {
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// MatchLanguage returns the first locale whose base language is in the
// allow-list. Locales may be BCP 47 tags ("pt-BR") or POSIX locale names
// ("en_US.UTF-8"); unparseable entries such as "C" are skipped.
func MatchLanguage(locales ...string) (string, bool) {
	for _, loc := range locales {
		code, ok := baseLanguage(loc)
		if ok && isLanguage(code) {
			return code, true
		}
	}
	return "", false
}

func baseLanguage(locale string) (string, bool) {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "" {
		return "", false
	}
	tag, err := language.Raw.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf != language.Exact {
		return "", false
	}
	return strings.ToLower(base.String()), true
}
