package negotiation

import "fmt"

func proposerPrompt(size string) string {
	return fmt.Sprintf("You are %s. You are responsible for determining the positions and sizes of rectangles, one per object in the user's scene. "+
		"The image size is %s. Each position_list item is [center_x, center_y, width, height] in integer pixels. "+
		"Ensure the bounding boxes do not overlap and do not go beyond the image boundaries. "+
		"If needed, make reasonable guesses to position the objects naturally within the scene described by the user prompt. "+
		"If %s rejected an earlier proposal, fix exactly what the reason names. "+
		"Always answer by calling the propose_layout tool.",
		NameProposer, size, NameVerifier)
}

func verifierPrompt(size string) string {
	return fmt.Sprintf("You are %s. You verify the naturalness and correctness of the positions and sizes proposed by %s, "+
		"given the objects' names. The image size is %s and each bounding box is (object name [center_x, center_y, width, height]). "+
		"Reject when boxes overlap, exceed the boundaries of a %s image, or do not match the prompt naturally, and give a concrete reason. "+
		"When the layout is good, approve it and forward object_name, num_objects and position_list unchanged to %s. "+
		"Always answer by calling the review_layout tool.",
		NameVerifier, NameProposer, size, size, NamePersister)
}

func persisterPrompt(size string) string {
	return fmt.Sprintf("You are %s. You save the layout approved by %s. The image size is %s. "+
		"Call the mask_generator tool once with the approved object_name, num_objects and position_list, copied exactly. "+
		"If the approved layout cannot be saved as it is, reply in plain text with a detailed reason so %s can reassign the positions.",
		NamePersister, NameVerifier, size, NameProposer)
}

func nudgeText(name, tool, failure string) string {
	if failure != "" {
		return fmt.Sprintf("%s, your %s call was rejected: %s. Call %s again with corrected arguments.", name, tool, failure, tool)
	}
	return fmt.Sprintf("%s, answer by calling the %s tool.", name, tool)
}
