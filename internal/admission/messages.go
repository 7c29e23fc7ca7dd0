package admission

// User-facing notices.
const (
	msgDuplicateParticipant = "A participant with this name is already in the class. Add a number to your name and try again."
	msgDuplicateWaiting     = "A student with this name is already waiting for approval."
	msgWaitingForApproval   = "Waiting for the teacher to let you in..."
	msgAdmitted             = "You have been admitted to the class!"
	msgDenied               = "Your request to join the class was declined."
	msgSessionFull          = "The class is full."
)
