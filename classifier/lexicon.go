package classifier

// ruleSeverity is the severity tag spec.md attaches to each Layer B family,
// distinct from the 0-2 Severity scale used by the final decision.
type ruleSeverity string

const (
	ruleSevere   ruleSeverity = "severe"
	ruleModerate ruleSeverity = "moderate"
	ruleMild     ruleSeverity = "mild"
)

// ruleFamily is one entry of Layer B's lexicon: a stem or phrase family with
// its severity, emitted labels, and the carve-outs that keep it from firing
// on ordinary Vietnamese text that happens to share a substring.
type ruleFamily struct {
	name string

	// patterns match against FullyNormalized; noDiacriticsPatterns match
	// against NoDiacritics. A family needs at least one of the two.
	patterns             []string
	noDiacriticsPatterns []string

	severity ruleSeverity
	labels   []Label

	// safeContexts are ambient phrases that, if present anywhere in the
	// text, negate an otherwise-matching hit.
	safeContexts []string

	// contextRequired families list only multi-word patterns above; the
	// field exists for self-documentation and is not read by any code.
	contextRequired bool

	// requiresTarget restricts the family to text that also names a
	// second/third-person target.
	requiresTarget bool

	isHateSpeech      bool
	isSevereProfanity bool
	isBodyShaming     bool
}

// targetPronouns are the second/third-person targeting shapes spec.md
// names for requires_target families.
var targetPronouns = []string{
	"mày", "mi", "ngươi", "bay", "chúng mày", "tụi mày", "bọn mày",
	"thằng này", "con này", "đứa này",
}

// bodyShamingEscalators combined with a body-shaming hit push the action
// from review to reject.
var bodyShamingEscalators = []string{
	"muốn nôn", "ghê tởm", "đáng chết", "cút đi",
}

// insultStems are the bare stems the obfuscation-bypass rule checks. "ngu"
// is never matched bare by a ruleFamily (that would defeat context_required
// and flood on words like "người" / "nguoi"); the other stems are also
// patterns of the sexual_lon, sexual_cac and profanity_dm families.
var insultStems = []string{"ngu", "dm", "dit", "du", "cac", "lon"}

// lexicon is the ordered set of rule families Layer B evaluates. Ordering
// does not affect the decision (severity wins regardless of position) but
// keeps the table readable grouped by taxonomy area.
var lexicon = []ruleFamily{
	{
		name:            "profanity_ngu_phrase",
		patterns:        []string{"đồ ngu", "thằng ngu", "con ngu", "ngu vậy", "ngu thế"},
		noDiacriticsPatterns: []string{"do ngu", "thang ngu", "con ngu"},
		severity:        ruleModerate,
		labels:          []Label{LabelToxicity, LabelInsult},
		contextRequired: true,
	},
	{
		name:                 "sexual_lon",
		patterns:             []string{"lồn"},
		noDiacriticsPatterns: []string{"lon"},
		severity:             ruleSevere,
		labels:               []Label{LabelSexual, LabelProfanity},
		safeContexts: []string{
			"lon bia", "hài lòng", "hai long", "các bạn", "du lịch",
			"bình thường", "con lợn", "như lợn", "mặt lợn",
		},
		isSevereProfanity: true,
	},
	{
		name:                 "sexual_cac",
		patterns:             []string{"cặc", "địt", "đụ", "chịch"},
		noDiacriticsPatterns: []string{"cac", "dit", "du", "chich"},
		severity:             ruleSevere,
		labels:               []Label{LabelSexual, LabelProfanity},
		safeContexts:         []string{"con vịt", "cặp đôi"},
		isSevereProfanity:    true,
	},
	{
		name:                 "profanity_dm",
		patterns:             []string{"đ.m", "đm", "d.m", "dm"},
		noDiacriticsPatterns: []string{"dm"},
		severity:             ruleSevere,
		labels:               []Label{LabelToxicity, LabelProfanity},
		isSevereProfanity:    true,
	},
	{
		name: "hate_racial",
		patterns: []string{
			"da đen bẩn thỉu", "da đen bẩn", "mọi da đen", "bọn da đen",
		},
		noDiacriticsPatterns: []string{"da den ban thiu", "moi da den", "bon da den"},
		severity:             ruleSevere,
		labels:               []Label{LabelHate, LabelRacism},
		isHateSpeech:         true,
	},
	{
		name:                 "xenophobia",
		patterns:             []string{"cút về nước", "về nước đi", "đồ ngoại bang"},
		noDiacriticsPatterns: []string{"cut ve nuoc", "ve nuoc di"},
		severity:             ruleSevere,
		labels:               []Label{LabelHate, LabelXenophobia},
		isHateSpeech:         true,
	},
	{
		name:                 "lgbtq_discrimination",
		patterns:             []string{"đồ đồng tính biến thái", "bệnh đồng tính"},
		noDiacriticsPatterns: []string{"do dong tinh bien thai", "benh dong tinh"},
		severity:             ruleSevere,
		labels:               []Label{LabelHate, LabelLGBTQDiscrimination},
		isHateSpeech:         true,
	},
	{
		name:                 "body_shaming",
		patterns:             []string{"béo như lợn", "xấu như ma", "mặt lợn"},
		noDiacriticsPatterns: []string{"beo nhu lon", "xau nhu ma"},
		severity:             ruleModerate,
		labels:               []Label{LabelHarassment, LabelBodyShaming},
		requiresTarget:       true,
		isBodyShaming:        true,
	},
	{
		name:                 "harassment_insult",
		patterns:             []string{"mày xấu vãi", "mày ngu vãi", "lũ bạn mày toàn rác"},
		noDiacriticsPatterns: []string{"may xau vai", "may ngu vai"},
		severity:             ruleModerate,
		labels:               []Label{LabelHarassment, LabelInsult},
		requiresTarget:       true,
	},
	{
		name:                 "threat",
		patterns:             []string{"tao sẽ giết mày", "đập chết mày", "giết cả nhà mày"},
		noDiacriticsPatterns: []string{"tao se giet may", "dap chet may"},
		severity:             ruleSevere,
		labels:               []Label{LabelThreat},
	},
	{
		name:                 "spam",
		patterns:             []string{"inbox mua hàng", "kiếm tiền online", "link sex"},
		noDiacriticsPatterns: []string{"inbox mua hang", "kiem tien online"},
		severity:             ruleMild,
		labels:               []Label{LabelSpam},
	},
}
