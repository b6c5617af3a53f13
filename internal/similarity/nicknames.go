package similarity

// nicknames maps common English nicknames to the canonical given name.
// Fixed many-to-one table: expansion is a plain lookup, never inferred.
var nicknames = map[string]string{
	"bob": "robert", "rob": "robert", "bobby": "robert", "robby": "robert",
	"bill": "william", "will": "william", "billy": "william", "willy": "william",
	"liz": "elizabeth", "beth": "elizabeth", "betsy": "elizabeth", "eliza": "elizabeth", "betty": "elizabeth",
	"jim": "james", "jimmy": "james", "jamie": "james",
	"jack": "john", "johnny": "john", "jon": "john",
	"kate": "katherine", "katie": "katherine", "kathy": "katherine", "kat": "katherine", "kitty": "katherine",
	"mike": "michael", "mikey": "michael",
	"dave": "david", "davey": "david",
	"chris": "christopher", "topher": "christopher",
	"dan": "daniel", "danny": "daniel",
	"tom": "thomas", "tommy": "thomas",
	"ed": "edward", "eddie": "edward", "ted": "edward", "ned": "edward",
	"tony": "anthony",
	"rick": "richard", "dick": "richard", "rich": "richard", "richie": "richard",
	"steve": "steven", "stevie": "steven",
	"jen": "jennifer", "jenny": "jennifer",
	"peggy": "margaret", "meg": "margaret", "maggie": "margaret", "marge": "margaret",
	"sam": "samuel", "sammy": "samuel",
	"alex": "alexander", "al": "alexander",
	"andy": "andrew", "drew": "andrew",
	"joe": "joseph", "joey": "joseph",
	"nick": "nicholas",
	"matt": "matthew", "matty": "matthew",
	"greg": "gregory",
	"ben": "benjamin", "benny": "benjamin",
	"becky": "rebecca",
	"sue": "susan", "susie": "susan", "suzy": "susan",
	"pat": "patricia", "trish": "patricia", "patty": "patricia",
	"frank": "francis", "frankie": "francis",
	"fred": "frederick", "freddy": "frederick",
	"hank": "henry", "harry": "henry",
	"larry": "lawrence",
	"terry": "terence",
	"gerry": "gerald", "jerry": "gerald",
	"ron": "ronald", "ronnie": "ronald",
	"don": "donald", "donny": "donald",
	"ken": "kenneth", "kenny": "kenneth",
	"tim": "timothy", "timmy": "timothy",
	"vicky": "victoria", "vicki": "victoria",
	"debbie": "deborah", "deb": "deborah",
	"cindy": "cynthia",
	"mandy": "amanda",
	"abby": "abigail",
	"gabe": "gabriel",
	"zach": "zachary", "zack": "zachary",
	"nate": "nathan",
	"phil": "philip",
	"ray": "raymond",
	"stan": "stanley",
	"walt": "walter", "wally": "walter",
}

// ExpandNickname returns the canonical given name for a nickname, or
// the input unchanged when it is not a known nickname.
func ExpandNickname(first string) string {
	if canonical, ok := nicknames[first]; ok {
		return canonical
	}
	return first
}

// IsNickname reports whether the given first name is a known nickname.
func IsNickname(first string) bool {
	_, ok := nicknames[first]
	return ok
}
