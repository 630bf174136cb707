package prompt

import (
	"fmt"
	"strings"
)

// System renders the system instruction for the menu extraction task. It is a
// pure function of the allowed restaurant types: identical input produces a
// byte-identical prompt.
func System(allowedTypes []string) string {
	quoted := make([]string, len(allowedTypes))
	for i, v := range allowedTypes {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	typeList := strings.Join(quoted, ", ")

	return fmt.Sprintf(`You are a Menu Data Extractor.

Input: A list of menu items. Each item includes:
  - restaurant_name
  - restaurant_type
  - item_name
  - menu_item_description (may be empty)
  - menu_category (may be empty)

Output: a JSON array (same order) with:
  - dish_base : string (the primary dish name, e.g., "pizza")
  - dish_flavor : string[] (up to 5 flavour descriptors, e.g., "pepperoni")
  - is_combo : boolean
  - restaurant_type_std : string

Rules:
  - Use lowercase American English, and translate non-English terms into English based on Merriam-Webster and AP Stylebook.

  - dish_base:
      - Should be the main identity of the dish (e.g., "pizza", "lo mein", "fried rice").
      - Remove size indicators, quantity counts, and side items.
      - If the base is unclear or ambiguous, use "unknown".
      - Use singular form.
      - Use item_name and context from other inputs to identify dish_base.

  - dish_flavor:
      - Up to 5 descriptors of flavor, cooking style, toppings, sauces, etc.
      - Each tag must be no more than two words.
      - DO NOT repeat dish_base unless meaning is added.
      - Use singular form and lowercase.

  - is_combo:
      - True if the item clearly bundles multiple components.

  - restaurant_type_std:
      - Must match one of the following values exactly: %s
      - If restaurant_type partially matches or contains keywords, normalize accordingly.
      - Otherwise, infer from all input fields.

  - Output must be raw JSON. No Markdown, no backticks, no labels.
`, typeList)
}
