package sqlinline

const QStatsSummary = `--sql c5a913e4-07d6-4f82-a1bb-94d5f2c86e01
select
    (select count(*) from users) as total_users,
    (select count(*) from translation_history) as total_translations,
    (select count(*) from translation_history where created_at > now() - interval '24 hours') as translations_24h,
    (select coalesce(sum(credits_used), 0) from translation_history where created_at > now() - interval '24 hours') as credits_spent_24h,
    (select count(*) from purchases) as total_purchases,
    (select coalesce(sum(credits_granted), 0) from purchases) as credits_granted_total;
`
