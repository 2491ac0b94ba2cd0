package extract

// makeEntry pairs the keyword matched against titles with the canonical
// make name. Order matters: the first entry whose keyword appears in the
// title wins, regardless of where in the title it appears.
type makeEntry struct {
	keyword   string
	canonical string
}

var knownMakes = []makeEntry{
	{"toyota", "Toyota"},
	{"honda", "Honda"},
	{"ford", "Ford"},
	{"chevrolet", "Chevrolet"},
	{"chevy", "Chevrolet"},
	{"nissan", "Nissan"},
	{"hyundai", "Hyundai"},
	{"kia", "Kia"},
	{"mazda", "Mazda"},
	{"subaru", "Subaru"},
	{"volkswagen", "Volkswagen"},
	{"vw", "Volkswagen"},
	{"jeep", "Jeep"},
	{"bmw", "BMW"},
	{"mercedes", "Mercedes"},
	{"lexus", "Lexus"},
	{"acura", "Acura"},
	{"audi", "Audi"},
}

// knownModels maps a lowercase make to its model keywords, checked in
// order. Keywords are lowercase; the canonical form is derived by title
// casing at match time.
var knownModels = map[string][]string{
	"toyota":     {"corolla", "camry", "rav4", "highlander", "4runner", "tacoma", "tundra", "prius", "sienna"},
	"honda":      {"civic", "accord", "cr-v", "pilot", "odyssey", "fit", "hr-v"},
	"ford":       {"f-150", "f150", "escape", "explorer", "focus", "fusion", "mustang"},
	"chevrolet":  {"silverado", "equinox", "tahoe", "malibu", "suburban", "colorado", "camaro"},
	"nissan":     {"altima", "rogue", "sentra", "murano", "pathfinder", "frontier", "maxima"},
	"hyundai":    {"elantra", "sonata", "tucson", "santa fe", "kona", "palisade"},
	"kia":        {"forte", "optima", "sorento", "sportage", "telluride", "soul"},
	"mazda":      {"mazda3", "mazda6", "cx-5", "cx-9", "mx-5", "miata"},
	"subaru":     {"outback", "forester", "impreza", "crosstrek", "legacy", "ascent"},
	"volkswagen": {"jetta", "passat", "tiguan", "atlas", "golf", "beetle"},
	"jeep":       {"wrangler", "grand cherokee", "cherokee", "compass", "renegade"},
	"bmw":        {"3 series", "5 series", "x3", "x5", "328i", "530i", "m3", "m5"},
	"mercedes":   {"c-class", "e-class", "s-class", "gla", "glc", "gle"},
	"lexus":      {"rx", "es", "nx", "is", "gx", "lx", "rc"},
	"acura":      {"mdx", "rdx", "tlx", "ilx", "rlx"},
	"audi":       {"a4", "a6", "q5", "q7", "a3", "tt", "r8"},
}
