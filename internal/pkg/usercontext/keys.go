package usercontext

// KeyUserContext is the Locals key holding the authenticated caller.
const KeyUserContext = "USER_CONTEXT"
