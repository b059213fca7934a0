package store

import "fmt"

// Key-format helpers. These are the literal prefixes documented in spec.md §3; changing them is a migration, so
// every entity repository builds keys exclusively through these functions rather than formatting strings inline.
func UserPK(userID string) string       { return "USER#" + userID }
func ProfileSK() string                 { return "PROFILE" }
func AttemptSK(ts string) string        { return "ATTEMPT#" + ts }
func GoalSK(goalID string) string       { return "GOAL#" + goalID }
func TaskSK(goalID, taskID string) string {
	return fmt.Sprintf("GOAL#%s#TASK#%s", goalID, taskID)
}
func TaskSKPrefix(goalID string) string { return fmt.Sprintf("GOAL#%s#TASK#", goalID) }
func QuestSK(questID string) string     { return "QUEST#" + questID }
func TemplateSK(templateID string) string { return "TEMPLATE#" + templateID }

func GuildPK(guildID string) string        { return "GUILD#" + guildID }
func GuildMetadataSK(guildID string) string { return "METADATA#" + guildID }
func MemberSK(userID string) string         { return "MEMBER#" + userID }
func JoinRequestSK(userID string) string    { return "JOIN_REQUEST#" + userID }
func CommentSK(commentID string) string     { return "COMMENT#" + commentID }

func GoalPK(goalID string) string        { return "GOAL#" + goalID }
func InviteSK(inviteeID string) string    { return "INVITE#" + inviteeID }

// CoreTable GSI1 OwnerGoals: lists a user's goals ordered by creation time. Distinct from GuildTable's own GSI1
// (GSI1PK/GSI1SK below), since the two are separate physical tables reusing the same index name.
func GoalOwnerGSI1PK(ownerID string) string { return "USER#" + ownerID }
func GoalOwnerGSI1SK(ts string) string      { return "GOAL#" + ts }

// CoreTable GSI2 TemplateLookup: every template projects onto a single fixed partition so a template can be
// fetched by id alone, without knowing its owner (needed for GET /templates/{id} on a public/followers template).
// Distinct from GuildTable's own GSI2 (CreatedBy) below.
func TemplateLookupGSI2PK() string                  { return "TEMPLATE" }
func TemplateLookupGSI2SK(templateID string) string { return TemplateSK(templateID) }

func RoomPK(roomID string) string { return "ROOM#" + roomID }
func MessageSK(ts string, msgID string) string {
	return fmt.Sprintf("MSG#%s#%s", ts, msgID)
}

func SubEventSK(ts, eventID string) string { return fmt.Sprintf("SUBEVENT#%s#%s", ts, eventID) }
func SubEventSKPrefix() string              { return "SUBEVENT#" }

func ReactionSK(targetID, userID, kind string) string {
	return fmt.Sprintf("REACT#%s#%s#%s", targetID, userID, kind)
}
func ReactionSKPrefix(targetID string) string { return "REACT#" + targetID + "#" }

// GSI1 GuildType-CreatedAt
func GSI1PK(guildType string) string { return "GUILD#" + guildType }
func GSI1SK(ts string) string        { return "CREATED_AT#" + ts }

// GSI2 CreatedBy
func GSI2PK(userID string) string { return "USER#" + userID }
func GSI2SK(guildID string) string { return "GUILD#" + guildID }

// GSI3 UserMembership
func GSI3PK(userID string) string { return "USER#" + userID }
func GSI3SK(guildID string) string { return "GUILD#" + guildID }

// GSI4 CommentThread
func GSI4PK(guildID, parentID string) string {
	return fmt.Sprintf("GUILD#%s#COMMENT_THREAD#%s", guildID, parentID)
}
func GSI4SK(ts string) string { return "CREATED_AT#" + ts }

// GSI5 UserComments
func GSI5PK(userID string) string { return "USER#" + userID }
func GSI5SK(guildID, commentID string) string {
	return fmt.Sprintf("COMMENT_IN_GUILD#%s#%s", guildID, commentID)
}
