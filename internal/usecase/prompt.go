package usecase

import (
	"fmt"
	"strings"

	"shop-assistant/internal/domain"
)

func classifyPrompt(input string) string {
	return strings.Join([]string{
		"You classify the intent of a message sent to an online store assistant.",
		"Valid intents:",
		"- search_product (looking for a product or a kind of product)",
		"- add_to_cart (put a product into the cart)",
		"- view_cart (show what is in the cart)",
		"- order (place an order, checkout, buy everything in the cart, buy a product from the cart)",
		"- info (questions about the store and what it sells)",
		"- check_order_status (where is my order, order status)",
		"- cancel_order (cancel an order)",
		"- change_cart_quantity (change how many of a product are in the cart, remove a product from the cart)",
		"- suggest_product (recommendations, what should I buy, products in a price range, best sellers)",
		"- update_profile (change name, phone number or delivery address)",
		"- other (anything else)",
		"",
		"Reply with exactly one intent name and nothing else.",
		"",
		fmt.Sprintf("Message: %q", input),
	}, "\n")
}

func addToCartPrompt(input string) string {
	return "Extract the product name and quantity from the message below. " +
		"Reply in exactly this format: <product name>|<quantity>. " +
		"Use 1 when no quantity is given. Reply none if no product is named. No explanation.\n" +
		"Message: " + input
}

func changeQuantityPrompt(input string) string {
	return "Extract the product name and the new quantity from the message below. " +
		"Reply in exactly this format: <product name>|<quantity>. " +
		"Removing a product means quantity 0. Reply none if either is missing. No explanation.\n" +
		"Message: " + input
}

func selectionPrompt(input string) string {
	return "Extract which product the customer wants to check out from the message below. " +
		"Reply all if they want to check out the whole cart. " +
		"Reply none if no product is named. Otherwise reply only the product name. No explanation.\n" +
		"Message: " + input
}

func profilePrompt(input string) string {
	return "Extract the customer's name, phone number and address from the message below. " +
		"Reply in exactly this format: name|<name>, phone|<phone>, address|<address>. " +
		"Leave out any field that is not given. Reply none if nothing is given. No explanation.\n" +
		"Message: " + input
}

func categoryKeywordPrompt(input string, categories []domain.Category) string {
	return fmt.Sprintf("Available product categories: %s.\n"+
		"Reply with the single category keyword that best matches the request below, or none if nothing matches. No explanation.\n"+
		"Request: %q", strings.Join(categoryNames(categories), ", "), input)
}

// constrainedPrompt asks for an answer that uses only the listed facts.
func constrainedPrompt(heading string, facts []string, question, guidance string) string {
	var b strings.Builder
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("Answer only from the list above. Do not invent products, prices or facts that are not in the list.\n")
	if guidance != "" {
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Customer question: %q", question)
	return b.String()
}

func categoryNames(categories []domain.Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}
