package subscription

import "strings"

// countryNames maps ISO 3166-1 alpha-2 codes to the names the storefront
// displays.
var countryNames = map[string]string{
	"AF": "Afghanistan", "AX": "Åland Islands", "AL": "Albania", "DZ": "Algeria",
	"AS": "American Samoa", "AD": "Andorra", "AO": "Angola", "AI": "Anguilla",
	"AQ": "Antarctica", "AG": "Antigua and Barbuda", "AR": "Argentina", "AM": "Armenia",
	"AW": "Aruba", "AU": "Australia", "AT": "Austria", "AZ": "Azerbaijan",
	"BS": "Bahamas", "BH": "Bahrain", "BD": "Bangladesh", "BB": "Barbados",
	"BY": "Belarus", "BE": "Belgium", "BZ": "Belize", "BJ": "Benin",
	"BM": "Bermuda", "BT": "Bhutan", "BO": "Bolivia", "BA": "Bosnia and Herzegovina",
	"BW": "Botswana", "BV": "Bouvet Island", "BR": "Brazil", "IO": "British Indian Ocean Territory",
	"BN": "Brunei", "BG": "Bulgaria", "BF": "Burkina Faso", "BI": "Burundi",
	"KH": "Cambodia", "CM": "Cameroon", "CA": "Canada", "CV": "Cape Verde",
	"KY": "Cayman Islands", "CF": "Central African Republic", "TD": "Chad", "CL": "Chile",
	"CN": "China", "CX": "Christmas Island", "CC": "Cocos (Keeling) Islands", "CO": "Colombia",
	"KM": "Comoros", "CG": "Congo (Brazzaville)", "CD": "Congo (Kinshasa)", "CK": "Cook Islands",
	"CR": "Costa Rica", "CI": "Côte d'Ivoire", "HR": "Croatia", "CU": "Cuba",
	"CW": "Curaçao", "CY": "Cyprus", "CZ": "Czech Republic", "DK": "Denmark",
	"DJ": "Djibouti", "DM": "Dominica", "DO": "Dominican Republic", "EC": "Ecuador",
	"EG": "Egypt", "SV": "El Salvador", "GQ": "Equatorial Guinea", "ER": "Eritrea",
	"EE": "Estonia", "ET": "Ethiopia", "FK": "Falkland Islands", "FO": "Faroe Islands",
	"FJ": "Fiji", "FI": "Finland", "FR": "France", "GF": "French Guiana",
	"PF": "French Polynesia", "TF": "French Southern Territories", "GA": "Gabon", "GM": "Gambia",
	"GE": "Georgia", "DE": "Germany", "GH": "Ghana", "GI": "Gibraltar",
	"GR": "Greece", "GL": "Greenland", "GD": "Grenada", "GP": "Guadeloupe",
	"GU": "Guam", "GT": "Guatemala", "GG": "Guernsey", "GN": "Guinea",
	"GW": "Guinea-Bissau", "GY": "Guyana", "HT": "Haiti", "HM": "Heard Island and McDonald Islands",
	"HN": "Honduras", "HK": "Hong Kong", "HU": "Hungary", "IS": "Iceland",
	"IN": "India", "ID": "Indonesia", "IR": "Iran", "IQ": "Iraq",
	"IE": "Republic of Ireland", "IM": "Isle of Man", "IL": "Israel", "IT": "Italy",
	"JM": "Jamaica", "JP": "Japan", "JE": "Jersey", "JO": "Jordan",
	"KZ": "Kazakhstan", "KE": "Kenya", "KI": "Kiribati", "KW": "Kuwait",
	"KG": "Kyrgyzstan", "LA": "Laos", "LV": "Latvia", "LB": "Lebanon",
	"LS": "Lesotho", "LR": "Liberia", "LY": "Libya", "LI": "Liechtenstein",
	"LT": "Lithuania", "LU": "Luxembourg", "MO": "Macao S.A.R., China", "MK": "Macedonia",
	"MG": "Madagascar", "MW": "Malawi", "MY": "Malaysia", "MV": "Maldives",
	"ML": "Mali", "MT": "Malta", "MH": "Marshall Islands", "MQ": "Martinique",
	"MR": "Mauritania", "MU": "Mauritius", "YT": "Mayotte", "MX": "Mexico",
	"FM": "Micronesia", "MD": "Moldova", "MC": "Monaco", "MN": "Mongolia",
	"ME": "Montenegro", "MS": "Montserrat", "MA": "Morocco", "MZ": "Mozambique",
	"MM": "Myanmar", "NA": "Namibia", "NR": "Nauru", "NP": "Nepal",
	"NL": "Netherlands", "NC": "New Caledonia", "NZ": "New Zealand", "NI": "Nicaragua",
	"NE": "Niger", "NG": "Nigeria", "NU": "Niue", "NF": "Norfolk Island",
	"KP": "North Korea", "MP": "Northern Mariana Islands", "NO": "Norway", "OM": "Oman",
	"PK": "Pakistan", "PW": "Palau", "PS": "Palestinian Territory", "PA": "Panama",
	"PG": "Papua New Guinea", "PY": "Paraguay", "PE": "Peru", "PH": "Philippines",
	"PN": "Pitcairn", "PL": "Poland", "PT": "Portugal", "PR": "Puerto Rico",
	"QA": "Qatar", "RE": "Réunion", "RO": "Romania", "RU": "Russia",
	"RW": "Rwanda", "BL": "Saint Barthélemy", "SH": "Saint Helena", "KN": "Saint Kitts and Nevis",
	"LC": "Saint Lucia", "MF": "Saint Martin (French part)", "SX": "Saint Martin (Dutch part)",
	"PM": "Saint Pierre and Miquelon", "VC": "Saint Vincent and the Grenadines",
	"WS": "Samoa", "SM": "San Marino", "ST": "São Tomé and Príncipe", "SA": "Saudi Arabia",
	"SN": "Senegal", "RS": "Serbia", "SC": "Seychelles", "SL": "Sierra Leone",
	"SG": "Singapore", "SK": "Slovakia", "SI": "Slovenia", "SB": "Solomon Islands",
	"SO": "Somalia", "ZA": "South Africa", "GS": "South Georgia/Sandwich Islands",
	"KR": "South Korea", "SS": "South Sudan", "ES": "Spain", "LK": "Sri Lanka",
	"SD": "Sudan", "SR": "Suriname", "SJ": "Svalbard and Jan Mayen", "SZ": "Swaziland",
	"SE": "Sweden", "CH": "Switzerland", "SY": "Syria", "TW": "Taiwan",
	"TJ": "Tajikistan", "TZ": "Tanzania", "TH": "Thailand", "TL": "Timor-Leste",
	"TG": "Togo", "TK": "Tokelau", "TO": "Tonga", "TT": "Trinidad and Tobago",
	"TN": "Tunisia", "TR": "Turkey", "TM": "Turkmenistan", "TC": "Turks and Caicos Islands",
	"TV": "Tuvalu", "UG": "Uganda", "UA": "Ukraine", "AE": "United Arab Emirates",
	"GB": "United Kingdom (UK)", "US": "United States (US)", "UM": "United States Minor Outlying Islands",
	"UY": "Uruguay", "UZ": "Uzbekistan", "VU": "Vanuatu", "VA": "Vatican",
	"VE": "Venezuela", "VN": "Vietnam", "WF": "Wallis and Futuna", "EH": "Western Sahara",
	"YE": "Yemen", "ZM": "Zambia", "ZW": "Zimbabwe", "VG": "British Virgin Islands",
	"VI": "United States Virgin Islands",
}

// mcCountryNames are the provider's spellings where they differ from the
// storefront's. The provider rejects merge-field country values it does not
// recognize, so these win when translating.
var mcCountryNames = map[string]string{
	"AX": "Aaland Islands",
	"AG": "Antigua And Barbuda",
	"BN": "Brunei Darussalam",
	"CG": "Congo",
	"CD": "Democratic Republic of the Congo",
	"CI": "Cote D'Ivoire",
	"CW": "Curacao",
	"HM": "Heard and Mc Donald Islands",
	"IE": "Ireland",
	"JE": "Jersey  (Channel Islands)",
	"LA": "Lao People's Democratic Republic",
	"MO": "Macau",
	"FM": "Micronesia, Federated States of",
	"MD": "Moldova, Republic of",
	"PW": "Palau",
	"PS": "Palestine",
	"WS": "Samoa (Independent)",
	"ST": "Sao Tome and Principe",
	"SX": "Sint Maarten",
	"GS": "South Georgia and the South Sandwich Islands",
	"SH": "St. Helena",
	"PM": "St. Pierre and Miquelon",
	"SJ": "Svalbard and Jan Mayen Islands",
	"TC": "Turks & Caicos Islands",
	"GB": "United Kingdom",
	"US": "United States of America",
	"VA": "Vatican City State (Holy See)",
	"WF": "Wallis and Futuna Islands",
	"VG": "Virgin Islands (British)",
}

// stateNames maps state/province codes per country for the countries the
// storefront ships states for. Other countries pass the raw code through.
var stateNames = map[string]map[string]string{
	"US": {
		"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
		"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
		"DC": "District Of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
		"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
		"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
		"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
		"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
		"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
		"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
		"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
		"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
		"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
		"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	},
	"CA": {
		"AB": "Alberta", "BC": "British Columbia", "MB": "Manitoba",
		"NB": "New Brunswick", "NL": "Newfoundland and Labrador", "NT": "Northwest Territories",
		"NS": "Nova Scotia", "NU": "Nunavut", "ON": "Ontario", "PE": "Prince Edward Island",
		"QC": "Quebec", "SK": "Saskatchewan", "YT": "Yukon Territory",
	},
	"AU": {
		"ACT": "Australian Capital Territory", "NSW": "New South Wales",
		"NT": "Northern Territory", "QLD": "Queensland", "SA": "South Australia",
		"TAS": "Tasmania", "VIC": "Victoria", "WA": "Western Australia",
	},
}

// translateLocationCode converts a two-letter country/state code on an order
// field into its full name. fieldKey names the order field being resolved
// ("billing_country", "shipping_state", ...); the country is read from the
// sibling *_country field. Unknown codes return empty for countries and the
// raw code for states, matching what the provider accepts.
func translateLocationCode(fieldKey string, field func(string) (string, bool)) string {
	fieldType := strings.TrimSuffix(strings.TrimSuffix(fieldKey, "_state"), "_country")

	countryCode, _ := field(fieldType + "_country")
	countryName, countryKnown := countryNames[countryCode]
	if !countryKnown {
		return ""
	}

	if strings.HasSuffix(fieldKey, "_state") {
		stateCode, ok := field(fieldType + "_state")
		if !ok || stateCode == "" {
			return ""
		}
		if states, ok := stateNames[countryCode]; ok {
			if name, ok := states[stateCode]; ok {
				return name
			}
		}
		return stateCode
	}

	if mcName, ok := mcCountryNames[countryCode]; ok && mcName != countryName {
		return mcName
	}
	return countryName
}
