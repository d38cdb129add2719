package usecase

// Synonym expansions map product brand names, disease aliases, and grass
// names to the active-ingredient classes and scientific terms used in the
// indexed documents. Expansion improves recall; it never changes the text
// shown back to the user.
var synonymExpansions = map[string]string{
	// Fungicides
	"heritage":    "heritage fungicide azoxystrobin strobilurin QoI",
	"daconil":     "daconil chlorothalonil contact fungicide",
	"banner maxx": "banner maxx propiconazole DMI",
	"lexicon":     "lexicon fluxapyroxad pyraclostrobin SDHI",
	"medallion":   "medallion fludioxonil phenylpyrrole",
	"velista":     "velista penthiopyrad SDHI",
	"posterity":   "posterity pydiflumetofen SDHI",
	"insignia":    "insignia pyraclostrobin strobilurin",
	"secure":      "secure fluazinam contact fungicide",
	"headway":     "headway azoxystrobin propiconazole",

	// Herbicides
	"tenacity":  "tenacity herbicide mesotrione HPPD",
	"barricade": "barricade prodiamine pre-emergent",
	"dimension": "dimension dithiopyr pre-emergent",
	"monument":  "monument herbicide trifloxysulfuron ALS",
	"certainty": "certainty sulfosulfuron ALS sedge",
	"specticle": "specticle indaziflam pre-emergent",
	"drive":     "drive quinclorac crabgrass herbicide",

	// Growth regulators and insecticides
	"primo":     "primo maxx trinexapac-ethyl plant growth regulator",
	"trimmit":   "trimmit paclobutrazol growth regulator",
	"acelepryn": "acelepryn chlorantraniliprole grub preventive",
	"merit":     "merit imidacloprid neonicotinoid grub",
	"dylox":     "dylox trichlorfon grub curative",

	// Diseases
	"dollar spot":    "dollar spot clarireedia jacksonii sclerotinia",
	"brown patch":    "brown patch rhizoctonia solani",
	"pythium":        "pythium blight cottony blight",
	"anthracnose":    "anthracnose colletotrichum basal rot",
	"fairy ring":     "fairy ring basidiomycete hydrophobic",
	"summer patch":   "summer patch magnaporthiopsis poae",
	"snow mold":      "snow mold microdochium typhula",
	"gray leaf spot": "gray leaf spot pyricularia grisea",

	// Weeds
	"crabgrass": "crabgrass digitaria annual grass",
	"poa":       "poa annua annual bluegrass",
	"poa annua": "poa annua annual bluegrass winter annual",
	"nutsedge":  "nutsedge cyperus sedge",
	"clover":    "clover trifolium broadleaf",
	"goosegrass": "goosegrass eleusine indica",

	// Grasses
	"bentgrass":    "creeping bentgrass agrostis stolonifera",
	"bermudagrass": "bermudagrass cynodon dactylon",
	"bermuda":      "bermudagrass cynodon dactylon",
	"zoysia":       "zoysiagrass zoysia japonica",
	"bluegrass":    "kentucky bluegrass poa pratensis",
	"ryegrass":     "perennial ryegrass lolium perenne",
	"fescue":       "tall fescue festuca arundinacea",
}

// Topic keyword tables used for intent classification and image matching.
var topicKeywords = map[string][]string{
	"disease":    {"fungicide", "disease", "dollar spot", "brown patch", "pythium", "anthracnose", "patch", "mold", "blight", "fungus", "nematode"},
	"weed":       {"herbicide", "weed", "crabgrass", "clover", "poa", "nutsedge", "sedge", "pre-emergent", "preemergent", "broadleaf"},
	"chemical":   {"rate", "label", "spray", "tank mix", "application", "oz", "active ingredient", "reentry", "rei"},
	"irrigation": {"water", "irrigation", "sprinkler", "moisture", "wilt", "drought", "hand water", "syringe"},
	"equipment":  {"mower", "reel", "bedknife", "roller", "aerifier", "sprayer", "grind", "backlap"},
	"fertilizer": {"fertilizer", "nitrogen", "potassium", "phosphorus", "granular", "foliar", "spoon feed"},
	"cultural":   {"mow", "mowing", "aeration", "aerification", "topdress", "verticut", "overseed", "height of cut"},
}
