package config

import "fmt"

// FieldError describes one rejected field in a settings update. The field
// keeps its previous value; the rest of the update still applies.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s and was reverted to its previous value", e.Field, e.Message)
}

// Settings are the admin-tunable runtime options. Unlike the Set/Condition
// blocks these can change between requests through the admin surface.
type Settings struct {
	Enabled                 bool
	AutoSubscribeOn         SubscribeOn
	CheckboxSubscribeOn     SubscribeOn
	DoNotResubscribe        bool
	AlreadySubscribedAction string
	WidgetLabels            Labels
	ShortcodeLabels         Labels
}

// ApplyUpdate validates input field by field against prev. Invalid fields
// revert to their previous value and are reported; the update is never
// rejected wholesale.
func ApplyUpdate(prev, input Settings) (Settings, []FieldError) {
	next := input
	var errs []FieldError

	revertSubscribeOn := func(field string, value SubscribeOn, fallback SubscribeOn) SubscribeOn {
		switch value {
		case SubscribeOnCheckout, SubscribeOnCompleted, SubscribeOnPayment, SubscribeDisabled:
			return value
		}
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("has invalid value %q", value)})
		return fallback
	}

	next.AutoSubscribeOn = revertSubscribeOn("auto.subscribe_on", input.AutoSubscribeOn, prev.AutoSubscribeOn)
	next.CheckboxSubscribeOn = revertSubscribeOn("checkbox.subscribe_on", input.CheckboxSubscribeOn, prev.CheckboxSubscribeOn)

	if input.AlreadySubscribedAction != "ignore" && input.AlreadySubscribedAction != "update" {
		errs = append(errs, FieldError{
			Field:   "already_subscribed_action",
			Message: fmt.Sprintf("has invalid value %q", input.AlreadySubscribedAction),
		})
		next.AlreadySubscribedAction = prev.AlreadySubscribedAction
	}

	revertLabels := func(field string, value, fallback Labels) Labels {
		if value.Success == "" || value.AlreadySubscribed == "" || value.Error == "" {
			errs = append(errs, FieldError{Field: field, Message: "has empty labels"})
			return fallback
		}
		return value
	}

	next.WidgetLabels = revertLabels("widget.labels", input.WidgetLabels, prev.WidgetLabels)
	next.ShortcodeLabels = revertLabels("shortcode.labels", input.ShortcodeLabels, prev.ShortcodeLabels)

	return next, errs
}
