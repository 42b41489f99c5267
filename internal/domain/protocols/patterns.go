package protocols

import "regexp"

// guiltTier is one confession-marker tier. Tiers are tested independently per
// line; within a tier the first matching pattern wins.
type guiltTier struct {
	Name     string
	Severity int
	Patterns []*regexp.Regexp
}

var guiltTiers = []guiltTier{
	{
		Name:     "DESPERATION",
		Severity: 5,
		Patterns: compileAll(`(?i)god\s+help`, `(?i)please\s+work`, `(?i)no\s+idea\s+why`,
			`(?i)dont\s+ask`, `(?i)don't\s+ask`, `(?i)i'?m\s+so\s+sorry`, `(?i)forgive\s+me`,
			`(?i)wtf`, `(?i)why\s+does\s+this\s+work`),
	},
	{
		Name:     "DANGER",
		Severity: 4,
		Patterns: compileAll(`(?i)do\s+not\s+touch`, `(?i)never\s+delete`, `(?i)here\s+be\s+dragons`,
			`(?i)magic[\s,.!]`, `(?i)voodoo`, `(?i)black\s+magic`, `(?i)fragile`, `(?i)careful`),
	},
	{
		Name:     "HACK",
		Severity: 3,
		Patterns: compileAll(`(?i)\bHACK\b`, `(?i)\bKLUDGE\b`, `(?i)\bUGLY\b`, `(?i)workaround`,
			`(?i)temporary\s+fix`, `(?i)quick\s+fix`, `(?i)band[\s-]?aid`),
	},
	{
		Name:     "FIXME",
		Severity: 2,
		Patterns: compileAll(`(?i)\bFIXME\b`, `(?i)\bBUG\b:?`, `(?i)\bBROKEN\b`, `(?i)doesn'?t\s+work`),
	},
	{
		Name:     "TODO",
		Severity: 1,
		Patterns: compileAll(`(?i)\bTODO\b`, `(?i)\bXXX\b`, `(?i)\bREVIEW\b`, `(?i)\bOPTIMIZE\b`,
			`(?i)\bREFACTOR\b`),
	},
}

// Exposure severity scale (ordinal 1-10).
const (
	sevCritical = 10
	sevHigh     = 8
	sevMedium   = 5
	sevLow      = 3
	sevInfo     = 1
)

// secretPattern is one named secret shape. Order matters: findings are
// produced in table order for each line.
type secretPattern struct {
	Name     string
	Severity int
	Re       *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"AWS_ACCESS_KEY", sevCritical, regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"AWS_SECRET_KEY", sevCritical, regexp.MustCompile(`[A-Za-z0-9/+=]{40}`)},
	{"OPENAI_API_KEY", sevCritical, regexp.MustCompile(`sk-[A-Za-z0-9]{48}`)},
	{"ANTHROPIC_API_KEY", sevCritical, regexp.MustCompile(`sk-ant-[A-Za-z0-9\-]{93}`)},
	{"STRIPE_API_KEY", sevCritical, regexp.MustCompile(`sk_live_[A-Za-z0-9]{24}`)},
	{"STRIPE_TEST_KEY", sevMedium, regexp.MustCompile(`sk_test_[A-Za-z0-9]{24}`)},
	{"GITHUB_TOKEN", sevCritical, regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`)},
	{"GITHUB_OAUTH", sevCritical, regexp.MustCompile(`gho_[A-Za-z0-9]{36}`)},
	{"SLACK_TOKEN", sevHigh, regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`)},
	{"PRIVATE_KEY", sevCritical, regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
	{"GOOGLE_API_KEY", sevHigh, regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)},
	{"HEROKU_API_KEY", sevMedium, regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)},
	{"GENERIC_API_KEY", sevHigh, regexp.MustCompile(`["']?api[_-]?key["']?\s*[:=]\s*["'][A-Za-z0-9]{16,}["']`)},
	{"GENERIC_SECRET", sevHigh, regexp.MustCompile(`["']?secret["']?\s*[:=]\s*["'][A-Za-z0-9]{8,}["']`)},
	{"GENERIC_PASSWORD", sevHigh, regexp.MustCompile(`["']?password["']?\s*[:=]\s*["'][^"']{4,}["']`)},
	{"DATABASE_URL", sevCritical, regexp.MustCompile(`(postgres|mysql|mongodb)://[^:]+:[^@]+@`)},
	{"JWT_SECRET", sevCritical, regexp.MustCompile(`jwt[_-]?secret\s*[:=]\s*["'][^"']+["']`)},
}

// sqlPattern pairs a string-built-query shape with its explanation.
type sqlPattern struct {
	Re          *regexp.Regexp
	Description string
}

var sqlInjectionPatterns = []sqlPattern{
	{regexp.MustCompile(`(?i)execute\s*\(\s*["'].*%s.*["']`), "string formatting in SQL execute"},
	{regexp.MustCompile(`(?i)execute\s*\(\s*f["']`), "f-string in SQL execute"},
	{regexp.MustCompile(`(?i)cursor\.execute\s*\([^,)]+\+`), "string concatenation in cursor.execute"},
	{regexp.MustCompile(`(?i)\.query\s*\([^,)]+\+`), "string concatenation in .query()"},
	{regexp.MustCompile(`(?i)SELECT.*FROM.*WHERE.*\+\s*\w+`), "string concatenation in SELECT"},
	{regexp.MustCompile(`(?i)INSERT\s+INTO.*\+\s*\w+`), "string concatenation in INSERT"},
	{regexp.MustCompile(`(?i)UPDATE.*SET.*\+\s*\w+`), "string concatenation in UPDATE"},
	{regexp.MustCompile(`(?i)DELETE\s+FROM.*\+\s*\w+`), "string concatenation in DELETE"},
	{regexp.MustCompile(`(?i)\.raw\s*\([^)]*\+`), "string concatenation in .raw() query"},
}

// routeTable describes how one framework declares routes and marks auth.
// Before/After bound the lexical window searched for auth markers.
type routeTable struct {
	Framework   string
	Route       *regexp.Regexp
	PathGroup   int
	MethodGroup int
	AuthMarkers []string
	Before      int
	After       int
}

var (
	flaskRoutes = routeTable{
		Framework:   "flask",
		Route:       regexp.MustCompile(`@\w+\.route\s*\(["']([^"']+)["']`),
		PathGroup:   1,
		AuthMarkers: []string{"@login_required", "@auth_required", "@jwt_required", "@token_required"},
		Before:      5,
	}
	djangoRoutes = routeTable{
		Framework:   "django",
		Route:       regexp.MustCompile(`path\s*\(["']([^"']+)["']`),
		PathGroup:   1,
		AuthMarkers: []string{"@login_required", "@permission_required", "@user_passes_test"},
		Before:      5,
	}
	fastapiRoutes = routeTable{
		Framework:   "fastapi",
		Route:       regexp.MustCompile(`@\w+\.(get|post|put|delete|patch)\s*\(["']([^"']+)["']`),
		PathGroup:   2,
		MethodGroup: 1,
		AuthMarkers: []string{"Depends(", "Security(", "HTTPBearer", "OAuth2"},
		Before:      5,
	}
	expressRoutes = routeTable{
		Framework:   "express",
		Route:       regexp.MustCompile(`\.(get|post|put|delete|patch)\s*\(["']([^"']+)["']`),
		PathGroup:   2,
		MethodGroup: 1,
		AuthMarkers: []string{"authenticate", "isAuthenticated", "passport.authenticate"},
		Before:      2,
		After:       2,
	}
)

// heavyImports maps module names to the reason they are considered costly.
// Config entries merge over this table.
var heavyImports = map[string]string{
	"pandas":     "heavy data library, consider lazy loading",
	"numpy":      "large numerical library",
	"tensorflow": "very heavy ML framework",
	"torch":      "heavy ML framework",
	"pytorch":    "heavy ML framework",
	"sklearn":    "large ML library",
	"scipy":      "large scientific library",
	"matplotlib": "heavy plotting library",
	"plotly":     "heavy plotting library",
	"opencv":     "heavy image processing library",
	"cv2":        "heavy image processing library",
	"PIL":        "image processing library",
	"requests":   "consider httpx for async support",
	"boto3":      "AWS SDK, ensure lazy initialization",
	"django":     "full framework import detected",
	"sqlalchemy": "full ORM import",
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}
