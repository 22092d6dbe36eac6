package grocery

import "strings"

// Categories in the order the app groups them on a list.
var Categories = []string{
	"Groente & Fruit",
	"Zuivel",
	"Bakkerij",
	"Vlees",
	"Vis",
	"Diepvries",
	"Voorraad",
	"Dranken",
	"Snacks",
	"Huishouden",
	"Verzorging",
	"Overig",
}

// Other is returned when nothing matches.
const Other = "Overig"

// Categorize returns the category for the given item name. It matches
// case-insensitively, exact names first, then keywords contained in the name.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return Other
}

var exactMatch = map[string]string{
	// Groente & Fruit
	"appel":        "Groente & Fruit",
	"appels":       "Groente & Fruit",
	"apple":        "Groente & Fruit",
	"apples":       "Groente & Fruit",
	"banaan":       "Groente & Fruit",
	"bananen":      "Groente & Fruit",
	"banana":       "Groente & Fruit",
	"bananas":      "Groente & Fruit",
	"peer":         "Groente & Fruit",
	"peren":        "Groente & Fruit",
	"citroen":      "Groente & Fruit",
	"citroenen":    "Groente & Fruit",
	"sinaasappels": "Groente & Fruit",
	"druiven":      "Groente & Fruit",
	"aardbeien":    "Groente & Fruit",
	"tomaat":       "Groente & Fruit",
	"tomaten":      "Groente & Fruit",
	"komkommer":    "Groente & Fruit",
	"paprika":      "Groente & Fruit",
	"ui":           "Groente & Fruit",
	"uien":         "Groente & Fruit",
	"knoflook":     "Groente & Fruit",
	"sla":          "Groente & Fruit",
	"spinazie":     "Groente & Fruit",
	"broccoli":     "Groente & Fruit",
	"wortels":      "Groente & Fruit",
	"aardappelen":  "Groente & Fruit",
	"champignons":  "Groente & Fruit",
	"avocado":      "Groente & Fruit",
	"prei":         "Groente & Fruit",

	// Zuivel
	"melk":      "Zuivel",
	"milk":      "Zuivel",
	"karnemelk": "Zuivel",
	"kaas":      "Zuivel",
	"cheese":    "Zuivel",
	"yoghurt":   "Zuivel",
	"kwark":     "Zuivel",
	"vla":       "Zuivel",
	"boter":     "Zuivel",
	"butter":    "Zuivel",
	"room":      "Zuivel",
	"slagroom":  "Zuivel",
	"eieren":    "Zuivel",
	"eggs":      "Zuivel",

	// Bakkerij
	"brood":         "Bakkerij",
	"bread":         "Bakkerij",
	"bolletjes":     "Bakkerij",
	"croissants":    "Bakkerij",
	"beschuit":      "Bakkerij",
	"krentenbollen": "Bakkerij",
	"stokbrood":     "Bakkerij",

	// Vlees
	"gehakt":    "Vlees",
	"kipfilet":  "Vlees",
	"kip":       "Vlees",
	"chicken":   "Vlees",
	"spek":      "Vlees",
	"spekjes":   "Vlees",
	"worst":     "Vlees",
	"rookworst": "Vlees",
	"biefstuk":  "Vlees",
	"ham":       "Vlees",

	// Vis
	"zalm":      "Vis",
	"kabeljauw": "Vis",
	"tonijn":    "Vis",
	"garnalen":  "Vis",
	"haring":    "Vis",
	"salmon":    "Vis",

	// Voorraad
	"rijst":     "Voorraad",
	"rice":      "Voorraad",
	"pasta":     "Voorraad",
	"spaghetti": "Voorraad",
	"macaroni":  "Voorraad",
	"meel":      "Voorraad",
	"bloem":     "Voorraad",
	"suiker":    "Voorraad",
	"zout":      "Voorraad",
	"olie":      "Voorraad",
	"olijfolie": "Voorraad",
	"hagelslag": "Voorraad",
	"pindakaas": "Voorraad",
	"jam":       "Voorraad",

	// Dranken
	"koffie":         "Dranken",
	"coffee":         "Dranken",
	"thee":           "Dranken",
	"tea":            "Dranken",
	"cola":           "Dranken",
	"bier":           "Dranken",
	"wijn":           "Dranken",
	"water":          "Dranken",
	"sinaasappelsap": "Dranken",

	// Snacks
	"chips":        "Snacks",
	"koekjes":      "Snacks",
	"chocolade":    "Snacks",
	"drop":         "Snacks",
	"nootjes":      "Snacks",
	"stroopwafels": "Snacks",

	// Huishouden
	"wc-papier":     "Huishouden",
	"toiletpapier":  "Huishouden",
	"keukenrol":     "Huishouden",
	"afwasmiddel":   "Huishouden",
	"wasmiddel":     "Huishouden",
	"vuilniszakken": "Huishouden",
	"allesreiniger": "Huishouden",

	// Verzorging
	"shampoo":      "Verzorging",
	"tandpasta":    "Verzorging",
	"deodorant":    "Verzorging",
	"zeep":         "Verzorging",
	"douchegel":    "Verzorging",
	"scheermesjes": "Verzorging",
}

type substringEntry struct {
	keyword  string
	category string
}

// Longer, more specific keywords come first.
var substringMatches = []substringEntry{
	// Compound names that would otherwise hit a shorter keyword.
	{"sinaasappelsap", "Dranken"},
	{"appelsap", "Dranken"},
	{"appeltaart", "Bakkerij"},
	{"roomboter", "Zuivel"},
	{"ijsblokjes", "Diepvries"},
	{"diepvries", "Diepvries"},
	{"pizza", "Diepvries"},
	{"ijs", "Diepvries"},
	{"frozen", "Diepvries"},

	{"kipfilet", "Vlees"},
	{"kippen", "Vlees"},
	{"gehakt", "Vlees"},
	{"worst", "Vlees"},
	{"vlees", "Vlees"},
	{"kip", "Vlees"},

	{"zalm", "Vis"},
	{"vis", "Vis"},

	{"melk", "Zuivel"},
	{"kaas", "Zuivel"},
	{"yoghurt", "Zuivel"},
	{"kwark", "Zuivel"},
	{"boter", "Zuivel"},
	{"eieren", "Zuivel"},

	{"brood", "Bakkerij"},
	{"bolletjes", "Bakkerij"},
	{"croissant", "Bakkerij"},

	{"papier", "Huishouden"},
	{"middel", "Huishouden"},
	{"zakken", "Huishouden"},

	{"tandpasta", "Verzorging"},
	{"shampoo", "Verzorging"},
	{"zeep", "Verzorging"},

	{"sap", "Dranken"},
	{"koffie", "Dranken"},
	{"thee", "Dranken"},
	{"bier", "Dranken"},
	{"wijn", "Dranken"},
	{"water", "Dranken"},

	{"chips", "Snacks"},
	{"koek", "Snacks"},
	{"chocola", "Snacks"},
	{"snoep", "Snacks"},

	{"pasta", "Voorraad"},
	{"rijst", "Voorraad"},
	{"saus", "Voorraad"},
	{"blik", "Voorraad"},

	{"appel", "Groente & Fruit"},
	{"banaan", "Groente & Fruit"},
	{"tomaat", "Groente & Fruit"},
	{"tomaten", "Groente & Fruit"},
	{"sla", "Groente & Fruit"},
	{"fruit", "Groente & Fruit"},
	{"groente", "Groente & Fruit"},
}
