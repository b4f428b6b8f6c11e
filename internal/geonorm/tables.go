package geonorm

// regionAliases expands well-known regional labels into their constituent
// counties, independent cities, and states. Keys are normalized (lowercase,
// trimmed, punctuation stripped).
var regionAliases = map[string]Normalized{
	"northern virginia": {
		Counties:          []string{"Fairfax", "Loudoun", "Prince William", "Arlington"},
		IndependentCities: []string{"Alexandria"},
		States:            []string{"VA"},
	},
	"nova": {
		Counties:          []string{"Fairfax", "Loudoun", "Prince William", "Arlington"},
		IndependentCities: []string{"Alexandria"},
		States:            []string{"VA"},
	},
	"dmv": {
		Counties:          []string{"Fairfax", "Montgomery", "Prince George's", "Arlington"},
		IndependentCities: []string{"Washington", "Alexandria"},
		States:            []string{"DC", "MD", "VA"},
	},
	"hampton roads": {
		Counties:          []string{"York", "Gloucester", "Isle of Wight"},
		IndependentCities: []string{"Norfolk", "Virginia Beach", "Chesapeake", "Newport News", "Hampton", "Portsmouth", "Suffolk"},
		States:            []string{"VA"},
	},
	"richmond metro": {
		Counties:          []string{"Henrico", "Chesterfield", "Hanover"},
		IndependentCities: []string{"Richmond"},
		States:            []string{"VA"},
	},
	"baltimore metro": {
		Counties:          []string{"Baltimore", "Anne Arundel", "Howard", "Harford", "Carroll"},
		IndependentCities: []string{"Baltimore"},
		States:            []string{"MD"},
	},
	"suburban maryland": {
		Counties: []string{"Montgomery", "Prince George's"},
		States:   []string{"MD"},
	},
}

// cityCounty maps a lowercase city label to its county and state. Virginia
// independent cities are intentionally absent here; they live in
// independentCities.
var cityCounty = map[string]struct {
	County string
	State  string
}{
	"mclean":        {"Fairfax", "VA"},
	"vienna":        {"Fairfax", "VA"},
	"reston":        {"Fairfax", "VA"},
	"herndon":       {"Fairfax", "VA"},
	"annandale":     {"Fairfax", "VA"},
	"springfield":   {"Fairfax", "VA"},
	"ashburn":       {"Loudoun", "VA"},
	"leesburg":      {"Loudoun", "VA"},
	"sterling":      {"Loudoun", "VA"},
	"woodbridge":    {"Prince William", "VA"},
	"dale city":     {"Prince William", "VA"},
	"gainesville":   {"Prince William", "VA"},
	"centreville":   {"Fairfax", "VA"},
	"chantilly":     {"Fairfax", "VA"},
	"dumfries":      {"Prince William", "VA"},
	"bethesda":      {"Montgomery", "MD"},
	"rockville":     {"Montgomery", "MD"},
	"silver spring": {"Montgomery", "MD"},
	"gaithersburg":  {"Montgomery", "MD"},
	"bowie":         {"Prince George's", "MD"},
	"college park":  {"Prince George's", "MD"},
	"towson":        {"Baltimore", "MD"},
	"columbia":      {"Howard", "MD"},
	"glen burnie":   {"Anne Arundel", "MD"},
}

// independentCities lists lowercase labels that are independent cities
// (no county), keyed to their state.
var independentCities = map[string]struct {
	Name  string
	State string
}{
	"alexandria":     {"Alexandria", "VA"},
	"fairfax city":   {"Fairfax City", "VA"},
	"falls church":   {"Falls Church", "VA"},
	"manassas":       {"Manassas", "VA"},
	"manassas park":  {"Manassas Park", "VA"},
	"fredericksburg": {"Fredericksburg", "VA"},
	"richmond":       {"Richmond", "VA"},
	"norfolk":        {"Norfolk", "VA"},
	"virginia beach": {"Virginia Beach", "VA"},
	"chesapeake":     {"Chesapeake", "VA"},
	"newport news":   {"Newport News", "VA"},
	"hampton":        {"Hampton", "VA"},
	"portsmouth":     {"Portsmouth", "VA"},
	"suffolk":        {"Suffolk", "VA"},
	"baltimore":      {"Baltimore", "MD"},
	"washington":     {"Washington", "DC"},
	"washington dc":  {"Washington", "DC"},
}

// stateNames maps full state names and abbreviations (lowercase) to USPS codes.
var stateNames = map[string]string{
	"virginia":             "VA",
	"va":                   "VA",
	"maryland":             "MD",
	"md":                   "MD",
	"district of columbia": "DC",
	"dc":                   "DC",
	"west virginia":        "WV",
	"wv":                   "WV",
	"pennsylvania":         "PA",
	"pa":                   "PA",
	"delaware":             "DE",
	"de":                   "DE",
	"north carolina":       "NC",
	"nc":                   "NC",
}

// countyState maps known lowercase county names (without the suffix) to
// their state, used by the county-suffix heuristic.
var countyState = map[string]string{
	"fairfax":        "VA",
	"loudoun":        "VA",
	"prince william": "VA",
	"arlington":      "VA",
	"stafford":       "VA",
	"spotsylvania":   "VA",
	"henrico":        "VA",
	"chesterfield":   "VA",
	"hanover":        "VA",
	"fauquier":       "VA",
	"culpeper":       "VA",
	"montgomery":     "MD",
	"prince george's": "MD",
	"prince georges": "MD",
	"howard":         "MD",
	"anne arundel":   "MD",
	"baltimore":      "MD",
	"frederick":      "MD",
	"charles":        "MD",
	"carroll":        "MD",
	"harford":        "MD",
}
