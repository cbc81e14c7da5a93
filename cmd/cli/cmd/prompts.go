package cmd

import (
	"errors"

	"github.com/manifoldco/promptui"
)

var runPrompt = func(prompt *promptui.Prompt) (string, error) {
	return prompt.Run()
}

// BoolPrompt asks a yes/no question, treating an aborted prompt as "no"
func BoolPrompt(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := runPrompt(&prompt)
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
