package countries

// Country is one entry of the built-in ISO-3166 table
type Country struct {
	Alpha3  string
	Alpha2  string
	Numeric string
	Name    string
	Aliases []string
}

// builtin lists sovereign states plus the few territories that publish their
// own macro series. Aliases cover World Bank, IMF and market-data spellings.
var builtin = []Country{
	{"AFG", "AF", "004", "Afghanistan", nil},
	{"ALB", "AL", "008", "Albania", nil},
	{"DZA", "DZ", "012", "Algeria", nil},
	{"AND", "AD", "020", "Andorra", nil},
	{"AGO", "AO", "024", "Angola", nil},
	{"ATG", "AG", "028", "Antigua and Barbuda", nil},
	{"ARG", "AR", "032", "Argentina", nil},
	{"ARM", "AM", "051", "Armenia", nil},
	{"AUS", "AU", "036", "Australia", nil},
	{"AUT", "AT", "040", "Austria", nil},
	{"AZE", "AZ", "031", "Azerbaijan", nil},
	{"BHS", "BS", "044", "Bahamas", []string{"Bahamas, The", "The Bahamas"}},
	{"BHR", "BH", "048", "Bahrain", nil},
	{"BGD", "BD", "050", "Bangladesh", nil},
	{"BRB", "BB", "052", "Barbados", nil},
	{"BLR", "BY", "112", "Belarus", nil},
	{"BEL", "BE", "056", "Belgium", nil},
	{"BLZ", "BZ", "084", "Belize", nil},
	{"BEN", "BJ", "204", "Benin", nil},
	{"BTN", "BT", "064", "Bhutan", nil},
	{"BOL", "BO", "068", "Bolivia", []string{"Plurinational State of Bolivia", "Bolivia (Plurinational State of)"}},
	{"BIH", "BA", "070", "Bosnia and Herzegovina", []string{"Bosnia-Herzegovina"}},
	{"BWA", "BW", "072", "Botswana", nil},
	{"BRA", "BR", "076", "Brazil", nil},
	{"BRN", "BN", "096", "Brunei Darussalam", []string{"Brunei"}},
	{"BGR", "BG", "100", "Bulgaria", nil},
	{"BFA", "BF", "854", "Burkina Faso", nil},
	{"BDI", "BI", "108", "Burundi", nil},
	{"CPV", "CV", "132", "Cabo Verde", []string{"Cape Verde"}},
	{"KHM", "KH", "116", "Cambodia", nil},
	{"CMR", "CM", "120", "Cameroon", nil},
	{"CAN", "CA", "124", "Canada", nil},
	{"CAF", "CF", "140", "Central African Republic", nil},
	{"TCD", "TD", "148", "Chad", nil},
	{"CHL", "CL", "152", "Chile", nil},
	{"CHN", "CN", "156", "China", []string{"People's Republic of China"}},
	{"COL", "CO", "170", "Colombia", nil},
	{"COM", "KM", "174", "Comoros", nil},
	{"COG", "CG", "178", "Congo", []string{"Republic of the Congo", "Republic of Congo", "Congo Republic", "Congo, Rep.", "Congo-Brazzaville"}},
	{"COD", "CD", "180", "Democratic Republic of the Congo", []string{"Congo, Dem. Rep.", "DR Congo", "DRC", "Congo-Kinshasa", "Zaire"}},
	{"CRI", "CR", "188", "Costa Rica", nil},
	{"CIV", "CI", "384", "Côte d'Ivoire", []string{"Ivory Coast"}},
	{"HRV", "HR", "191", "Croatia", nil},
	{"CUB", "CU", "192", "Cuba", nil},
	{"CYP", "CY", "196", "Cyprus", nil},
	{"CZE", "CZ", "203", "Czechia", []string{"Czech Republic"}},
	{"DNK", "DK", "208", "Denmark", nil},
	{"DJI", "DJ", "262", "Djibouti", nil},
	{"DMA", "DM", "212", "Dominica", nil},
	{"DOM", "DO", "214", "Dominican Republic", nil},
	{"ECU", "EC", "218", "Ecuador", nil},
	{"EGY", "EG", "818", "Egypt", []string{"Egypt, Arab Rep.", "Arab Republic of Egypt"}},
	{"SLV", "SV", "222", "El Salvador", nil},
	{"GNQ", "GQ", "226", "Equatorial Guinea", nil},
	{"ERI", "ER", "232", "Eritrea", nil},
	{"EST", "EE", "233", "Estonia", nil},
	{"SWZ", "SZ", "748", "Eswatini", []string{"Swaziland"}},
	{"ETH", "ET", "231", "Ethiopia", nil},
	{"FJI", "FJ", "242", "Fiji", nil},
	{"FIN", "FI", "246", "Finland", nil},
	{"FRA", "FR", "250", "France", nil},
	{"GAB", "GA", "266", "Gabon", nil},
	{"GMB", "GM", "270", "Gambia", []string{"Gambia, The", "The Gambia"}},
	{"GEO", "GE", "268", "Georgia", nil},
	{"DEU", "DE", "276", "Germany", nil},
	{"GHA", "GH", "288", "Ghana", nil},
	{"GRC", "GR", "300", "Greece", nil},
	{"GRD", "GD", "308", "Grenada", nil},
	{"GTM", "GT", "320", "Guatemala", nil},
	{"GIN", "GN", "324", "Guinea", nil},
	{"GNB", "GW", "624", "Guinea-Bissau", nil},
	{"GUY", "GY", "328", "Guyana", nil},
	{"HTI", "HT", "332", "Haiti", nil},
	{"HND", "HN", "340", "Honduras", nil},
	{"HUN", "HU", "348", "Hungary", nil},
	{"ISL", "IS", "352", "Iceland", nil},
	{"IND", "IN", "356", "India", nil},
	{"IDN", "ID", "360", "Indonesia", nil},
	{"IRN", "IR", "364", "Iran", []string{"Iran, Islamic Rep.", "Islamic Republic of Iran"}},
	{"IRQ", "IQ", "368", "Iraq", nil},
	{"IRL", "IE", "372", "Ireland", nil},
	{"ISR", "IL", "376", "Israel", nil},
	{"ITA", "IT", "380", "Italy", nil},
	{"JAM", "JM", "388", "Jamaica", nil},
	{"JPN", "JP", "392", "Japan", nil},
	{"JOR", "JO", "400", "Jordan", nil},
	{"KAZ", "KZ", "398", "Kazakhstan", nil},
	{"KEN", "KE", "404", "Kenya", nil},
	{"KIR", "KI", "296", "Kiribati", nil},
	{"PRK", "KP", "408", "North Korea", []string{"Korea, Dem. People's Rep.", "Democratic People's Republic of Korea"}},
	{"KOR", "KR", "410", "South Korea", []string{"Korea, Rep.", "Republic of Korea"}},
	{"KWT", "KW", "414", "Kuwait", nil},
	{"KGZ", "KG", "417", "Kyrgyzstan", []string{"Kyrgyz Republic"}},
	{"LAO", "LA", "418", "Laos", []string{"Lao PDR", "Lao People's Democratic Republic"}},
	{"LVA", "LV", "428", "Latvia", nil},
	{"LBN", "LB", "422", "Lebanon", nil},
	{"LSO", "LS", "426", "Lesotho", nil},
	{"LBR", "LR", "430", "Liberia", nil},
	{"LBY", "LY", "434", "Libya", nil},
	{"LIE", "LI", "438", "Liechtenstein", nil},
	{"LTU", "LT", "440", "Lithuania", nil},
	{"LUX", "LU", "442", "Luxembourg", nil},
	{"MDG", "MG", "450", "Madagascar", nil},
	{"MWI", "MW", "454", "Malawi", nil},
	{"MYS", "MY", "458", "Malaysia", nil},
	{"MDV", "MV", "462", "Maldives", nil},
	{"MLI", "ML", "466", "Mali", nil},
	{"MLT", "MT", "470", "Malta", nil},
	{"MHL", "MH", "584", "Marshall Islands", nil},
	{"MRT", "MR", "478", "Mauritania", nil},
	{"MUS", "MU", "480", "Mauritius", nil},
	{"MEX", "MX", "484", "Mexico", nil},
	{"FSM", "FM", "583", "Micronesia", []string{"Micronesia, Fed. Sts.", "Federated States of Micronesia"}},
	{"MDA", "MD", "498", "Moldova", []string{"Republic of Moldova"}},
	{"MCO", "MC", "492", "Monaco", nil},
	{"MNG", "MN", "496", "Mongolia", nil},
	{"MNE", "ME", "499", "Montenegro", nil},
	{"MAR", "MA", "504", "Morocco", nil},
	{"MOZ", "MZ", "508", "Mozambique", nil},
	{"MMR", "MM", "104", "Myanmar", []string{"Burma"}},
	{"NAM", "NA", "516", "Namibia", nil},
	{"NRU", "NR", "520", "Nauru", nil},
	{"NPL", "NP", "524", "Nepal", nil},
	{"NLD", "NL", "528", "Netherlands", []string{"The Netherlands", "Holland"}},
	{"NZL", "NZ", "554", "New Zealand", nil},
	{"NIC", "NI", "558", "Nicaragua", nil},
	{"NER", "NE", "562", "Niger", nil},
	{"NGA", "NG", "566", "Nigeria", nil},
	{"MKD", "MK", "807", "North Macedonia", []string{"Macedonia", "Macedonia, FYR"}},
	{"NOR", "NO", "578", "Norway", nil},
	{"OMN", "OM", "512", "Oman", nil},
	{"PAK", "PK", "586", "Pakistan", nil},
	{"PLW", "PW", "585", "Palau", nil},
	{"PAN", "PA", "591", "Panama", nil},
	{"PNG", "PG", "598", "Papua New Guinea", nil},
	{"PRY", "PY", "600", "Paraguay", nil},
	{"PER", "PE", "604", "Peru", nil},
	{"PHL", "PH", "608", "Philippines", nil},
	{"POL", "PL", "616", "Poland", nil},
	{"PRT", "PT", "620", "Portugal", nil},
	{"QAT", "QA", "634", "Qatar", nil},
	{"ROU", "RO", "642", "Romania", nil},
	{"RUS", "RU", "643", "Russia", []string{"Russian Federation"}},
	{"RWA", "RW", "646", "Rwanda", nil},
	{"KNA", "KN", "659", "Saint Kitts and Nevis", []string{"St. Kitts and Nevis"}},
	{"LCA", "LC", "662", "Saint Lucia", []string{"St. Lucia"}},
	{"VCT", "VC", "670", "Saint Vincent and the Grenadines", []string{"St. Vincent and the Grenadines"}},
	{"WSM", "WS", "882", "Samoa", nil},
	{"SMR", "SM", "674", "San Marino", nil},
	{"STP", "ST", "678", "Sao Tome and Principe", nil},
	{"SAU", "SA", "682", "Saudi Arabia", nil},
	{"SEN", "SN", "686", "Senegal", nil},
	{"SRB", "RS", "688", "Serbia", nil},
	{"SYC", "SC", "690", "Seychelles", nil},
	{"SLE", "SL", "694", "Sierra Leone", nil},
	{"SGP", "SG", "702", "Singapore", nil},
	{"SVK", "SK", "703", "Slovakia", []string{"Slovak Republic"}},
	{"SVN", "SI", "705", "Slovenia", nil},
	{"SLB", "SB", "090", "Solomon Islands", nil},
	{"SOM", "SO", "706", "Somalia", nil},
	{"ZAF", "ZA", "710", "South Africa", nil},
	{"SSD", "SS", "728", "South Sudan", nil},
	{"ESP", "ES", "724", "Spain", nil},
	{"LKA", "LK", "144", "Sri Lanka", nil},
	{"SDN", "SD", "729", "Sudan", nil},
	{"SUR", "SR", "740", "Suriname", nil},
	{"SWE", "SE", "752", "Sweden", nil},
	{"CHE", "CH", "756", "Switzerland", nil},
	{"SYR", "SY", "760", "Syria", []string{"Syrian Arab Republic"}},
	{"TJK", "TJ", "762", "Tajikistan", nil},
	{"TZA", "TZ", "834", "Tanzania", []string{"United Republic of Tanzania"}},
	{"THA", "TH", "764", "Thailand", nil},
	{"TLS", "TL", "626", "Timor-Leste", []string{"East Timor"}},
	{"TGO", "TG", "768", "Togo", nil},
	{"TON", "TO", "776", "Tonga", nil},
	{"TTO", "TT", "780", "Trinidad and Tobago", nil},
	{"TUN", "TN", "788", "Tunisia", nil},
	{"TUR", "TR", "792", "Türkiye", []string{"Turkey"}},
	{"TKM", "TM", "795", "Turkmenistan", nil},
	{"TUV", "TV", "798", "Tuvalu", nil},
	{"UGA", "UG", "800", "Uganda", nil},
	{"UKR", "UA", "804", "Ukraine", nil},
	{"ARE", "AE", "784", "United Arab Emirates", []string{"UAE"}},
	{"GBR", "GB", "826", "United Kingdom", []string{"UK", "Great Britain", "Britain"}},
	{"USA", "US", "840", "United States", []string{"United States of America"}},
	{"URY", "UY", "858", "Uruguay", nil},
	{"UZB", "UZ", "860", "Uzbekistan", nil},
	{"VUT", "VU", "548", "Vanuatu", nil},
	{"VEN", "VE", "862", "Venezuela", []string{"Venezuela, RB", "Bolivarian Republic of Venezuela"}},
	{"VNM", "VN", "704", "Vietnam", []string{"Viet Nam"}},
	{"YEM", "YE", "887", "Yemen", []string{"Yemen, Rep."}},
	{"ZMB", "ZM", "894", "Zambia", nil},
	{"ZWE", "ZW", "716", "Zimbabwe", nil},

	// territories and partially recognized states with their own series
	{"HKG", "HK", "344", "Hong Kong", []string{"Hong Kong SAR, China"}},
	{"MAC", "MO", "446", "Macao", []string{"Macau", "Macao SAR, China"}},
	{"TWN", "TW", "158", "Taiwan", []string{"Taiwan, China"}},
	{"PSE", "PS", "275", "Palestine", []string{"West Bank and Gaza"}},
	{"PRI", "PR", "630", "Puerto Rico", nil},
	{"GUF", "GF", "254", "French Guiana", nil},
	{"XKX", "XK", "", "Kosovo", nil},
}

// All returns a copy of the built-in table
func All() []Country {
	out := make([]Country, len(builtin))
	copy(out, builtin)
	return out
}
