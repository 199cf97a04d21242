package roles

// CanUpload reports whether role may ingest documents.
func CanUpload(role Role) bool {
	return role.Capabilities().Upload
}

// CanDeleteDocument reports whether role may permanently remove a document.
func CanDeleteDocument(role Role) bool {
	return role.Capabilities().DeleteDocuments
}

// CanDelete reports whether actor may remove the target member. Nobody may
// remove themselves. Team leads may only remove Employees on their own team.
func CanDelete(actor, target Principal) bool {
	if actor.UserID == "" || actor.UserID == target.UserID {
		return false
	}

	caps := actor.Role.Capabilities()
	switch {
	case caps.DeleteAny:
		return true
	case caps.DeleteOwnTeam:
		return target.Role == Employee && target.TeamLead != "" && target.TeamLead == actor.UserID
	default:
		return false
	}
}
